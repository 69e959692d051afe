package websocket

import "errors"

var (
	ErrSendBufferFull = errors.New("send buffer is full")
	ErrClientClosed   = errors.New("client connection closed")
	ErrClientNotFound = errors.New("client not found")
)
