package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrInvalidRoomCode = fmt.Errorf("invalid room code")
	ErrRoomFull        = fmt.Errorf("room is full")
	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrRoomEnded       = fmt.Errorf("room has ended")
	ErrEmptyMessage    = fmt.Errorf("empty message content")
	ErrRoomNotReady    = fmt.Errorf("room is not ready for conversation")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
	ErrEmptyReply      = fmt.Errorf("responder returned an empty reply")
)
