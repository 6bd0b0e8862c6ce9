package game

import (
	"fmt"

	httperrors "github.com/gokatarajesh/numquiz/pkg/http/errors"
)

// ErrorKind classifies rejected commands.
type ErrorKind string

const (
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindState         ErrorKind = "state"
	KindValidation    ErrorKind = "validation"
)

// Error is a rejected command. Session state is unchanged when one is returned.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrNotHost        = &Error{Kind: KindAuthorization, Code: httperrors.ErrCodeNotHost, Message: "Only the host of this room can do that"}
	ErrNotPlayer      = &Error{Kind: KindAuthorization, Code: httperrors.ErrCodeNotPlayer, Message: "You are not a player in this room"}
	ErrHostCannotJoin = &Error{Kind: KindAuthorization, Code: httperrors.ErrCodeForbidden, Message: "The host cannot join their own room"}

	ErrRoomNotFound = &Error{Kind: KindNotFound, Code: httperrors.ErrCodeRoomNotFound, Message: "Room not found"}

	ErrGameInProgress  = &Error{Kind: KindState, Code: httperrors.ErrCodeInvalidState, Message: "Game already in progress"}
	ErrAlreadyStarted  = &Error{Kind: KindState, Code: httperrors.ErrCodeInvalidState, Message: "Game has already started"}
	ErrNotInProgress   = &Error{Kind: KindState, Code: httperrors.ErrCodeInvalidState, Message: "Game not in progress"}
	ErrNicknameTaken   = &Error{Kind: KindState, Code: httperrors.ErrCodeNicknameTaken, Message: "Nickname already taken"}
	ErrAlreadyJoined   = &Error{Kind: KindState, Code: httperrors.ErrCodeAlreadyJoined, Message: "You already joined this room"}
	ErrAlreadyAnswered = &Error{Kind: KindState, Code: httperrors.ErrCodeAlreadyAnswered, Message: "You already answered this question"}
	ErrAnswersClosed   = &Error{Kind: KindState, Code: httperrors.ErrCodeAnswersClosed, Message: "Answers are closed for this question"}
	ErrNoAnswers       = &Error{Kind: KindState, Code: httperrors.ErrCodeNoAnswers, Message: "No answers received yet"}
	ErrAlreadyRevealed = &Error{Kind: KindState, Code: httperrors.ErrCodeAlreadyRevealed, Message: "Answer already revealed for this question"}

	ErrNicknameRequired = &Error{Kind: KindValidation, Code: httperrors.ErrCodeInvalidNickname, Message: "Nickname is required"}
	ErrInvalidAnswer    = &Error{Kind: KindValidation, Code: httperrors.ErrCodeInvalidAnswer, Message: "Answer must be a finite number"}
)

func errNotEnoughPlayers(min int) *Error {
	return &Error{
		Kind:    KindState,
		Code:    httperrors.ErrCodeNotEnoughPlayers,
		Message: fmt.Sprintf("At least %d player(s) must join before the game can start", min),
	}
}

func errInvalidPayload(message string) *Error {
	return &Error{Kind: KindValidation, Code: httperrors.ErrCodeInvalidPayload, Message: message}
}
