package chat

import "errors"

// User-facing texts written into a failed placeholder
const (
	SendErrorText       = "网络连接异常，请稍后重试。"
	RegenerateErrorText = "重试失败，请检查网络。"
)

var (
	// ErrEmptyInput rejects a turn with no text and no image
	ErrEmptyInput = errors.New("empty input")
	// ErrSessionBusy rejects a turn while another is in flight for the same session
	ErrSessionBusy = errors.New("session has a turn in flight")
	// ErrNothingToRegenerate is returned when the session does not end in a
	// user and model pair
	ErrNothingToRegenerate = errors.New("nothing to regenerate")
	// ErrStaleTurn is returned when a turn finished after its session stopped
	// being active. The result was stored in its own session only.
	ErrStaleTurn = errors.New("session no longer active")
)
