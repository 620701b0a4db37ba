package controller

import "errors"

var (
	ErrParseRequest = errors.New("failed to parse request")

	ErrSessionNotFound    = errors.New("agent session not found")
	ErrGetSessionMessages = errors.New("failed to get session messages")

	ErrCallAgent = errors.New("error while calling agent")

	ErrUpgradeWebSocket = errors.New("failed to upgrade websocket connection")

	ErrArchiveDisabled       = errors.New("conversation archive is not configured")
	ErrGetArchivedSessions   = errors.New("failed to get archived sessions")
	ErrGetArchivedMessages   = errors.New("failed to get archived messages")
	ErrDeleteArchivedSession = errors.New("failed to delete archived session")
)
