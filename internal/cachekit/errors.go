package cachekit

import "errors"

// ErrWrongType is returned by Keyspace operations when a command targets a
// key holding a value of the wrong tag (I2: a value's tag is immutable once
// set).
var ErrWrongType = errors.New("wrong type")

// errEmptyCommand marks a zero-length command array. Unlike ProtocolError,
// this is not fatal to the connection — it becomes a reply, not a close.
var errEmptyCommand = errors.New("empty command")
