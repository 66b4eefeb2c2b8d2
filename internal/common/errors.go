package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("requested resource not found")
	ErrUnauthorized        = errors.New("caller is not a participant")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict") // e.g. room code already taken
	ErrInternalServer      = errors.New("internal server error")
	ErrInvalidRoomState    = errors.New("operation not allowed in current room state")
	ErrRoomCodeExhausted   = errors.New("could not allocate a unique room code")
	ErrNoProblemsAvailable = errors.New("no problems available for this difficulty")
	ErrJudgeExecution      = errors.New("judge execution failed")
	ErrJudgeTimeout        = errors.New("judge did not finish in time")
)

// Kind is the machine-readable error name returned to API callers.
type Kind string

const (
	KindUnauthorized         Kind = "Unauthorized"
	KindInvalidRoomState     Kind = "InvalidRoomState"
	KindRoomCodeExhausted    Kind = "RoomCodeExhausted"
	KindNoProblemsAvailable  Kind = "NoProblemsAvailable"
	KindJudgeExecutionFailed Kind = "JudgeExecutionFailed"
	KindJudgeTimeout         Kind = "JudgeTimeout"
	KindNotFound             Kind = "NotFound"
	KindBadRequest           Kind = "BadRequest"
	KindConflict             Kind = "Conflict"
	KindInternal             Kind = "Internal"
)

// KindOf classifies err into one of the public error kinds.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidRoomState):
		return KindInvalidRoomState
	case errors.Is(err, ErrRoomCodeExhausted):
		return KindRoomCodeExhausted
	case errors.Is(err, ErrNoProblemsAvailable):
		return KindNoProblemsAvailable
	case errors.Is(err, ErrJudgeTimeout):
		return KindJudgeTimeout
	case errors.Is(err, ErrJudgeExecution):
		return KindJudgeExecutionFailed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrConflict):
		return KindConflict
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return KindConflict
	}
	return KindInternal
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindInvalidRoomState, KindConflict:
		return http.StatusConflict
	case KindNoProblemsAvailable, KindRoomCodeExhausted:
		return http.StatusServiceUnavailable
	case KindJudgeExecutionFailed:
		return http.StatusBadGateway
	case KindJudgeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// PublicMessage is the caller-facing text for err. Internal errors never leak
// storage details.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return ErrInternalServer.Error()
	}
	return err.Error()
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
