package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// RoomLockKey derives the advisory lock key serializing schedule writes per room.
func RoomLockKey(roomID int64) int64 {
	return lockKey(fmt.Sprintf("room:%d", roomID))
}

// TeacherLockKey derives the advisory lock key serializing schedule writes per teacher.
func TeacherLockKey(teacherID int64) int64 {
	return lockKey(fmt.Sprintf("teacher:%d", teacherID))
}

// ExamRoomLockKey serializes exam writes per room and date.
func ExamRoomLockKey(roomID int64, date string) int64 {
	return lockKey(fmt.Sprintf("examroom:%d:%s", roomID, date))
}

// lockKey folds a deterministic UUID of the resource name into the int64
// space pg_advisory_xact_lock expects. Collisions only cost extra
// serialization, never a missed conflict.
func lockKey(name string) int64 {
	id := uuid.NewSHA1(uuid.Nil, []byte(name))
	var key int64
	for i := 0; i < 8; i++ {
		key = key<<8 | int64(id[i])
	}
	return key
}
