package responder

import "fmt"

// ConfigError reports a missing or empty required setting. It is the
// only error that stops the process before monitoring begins.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("required setting %s is not configured", e.Key)
}

// AuthError reports credentials the server rejected.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// ConnectError reports a transport or protocol failure on the mailbox
// connection. The connection is discarded as a whole; no command is
// retried on the same socket.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return "connection failed: " + e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a failed reply submission.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "failed to send reply: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }
