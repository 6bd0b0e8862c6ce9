package errors

// Error codes for standardized error responses
const (
	// Authorization errors
	ErrCodeForbidden = "forbidden"
	ErrCodeNotHost   = "not_host"
	ErrCodeNotPlayer = "not_player"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInvalidQuiz      = "invalid_quiz"
	ErrCodeInvalidNickname  = "invalid_nickname"
	ErrCodeInvalidAnswer    = "invalid_answer"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Room/Game errors
	ErrCodeRoomCreationFailed = "room_creation_failed"
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeInvalidRoomCode    = "invalid_room_code"
	ErrCodeJoinFailed         = "join_failed"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeNotEnoughPlayers   = "not_enough_players"
	ErrCodeNicknameTaken      = "nickname_taken"
	ErrCodeAlreadyJoined      = "already_joined"
	ErrCodeAlreadyAnswered    = "already_answered"
	ErrCodeAnswersClosed      = "answers_closed"
	ErrCodeNoAnswers          = "no_answers"
	ErrCodeAlreadyRevealed    = "already_revealed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Feature availability
	ErrCodeFeatureNotAvailable = "feature_not_available"

	// Results errors
	ErrCodeResultsFetchFailed = "results_fetch_failed"
	ErrCodeQRCodeFailed       = "qr_code_failed"
)
