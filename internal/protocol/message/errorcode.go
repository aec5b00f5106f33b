package message

import "fmt"

// ErrorCode is the gateway's symbolic failure reason.
type ErrorCode int32

const (
	ErrSuccess ErrorCode = iota
	ErrFormat
	ErrNoCmd
	ErrNoField
	ErrNoSeq
	ErrNoLogin
	ErrValueNotExist
	ErrNetwork
	ErrResponse
	ErrNotReady
	ErrNoSupportCmd
	ErrNoSupportValue
	ErrInvalidFieldType
	ErrToken
	ErrMarket
	ErrNamespace
	ErrQualifiedName
	ErrInvalidParameter
	ErrNoToken
	ErrExpireToken
	ErrNoSession
	ErrNoIndex
	ErrUserRate
	ErrUnknown
)

var errorCodeNames = map[ErrorCode]string{
	ErrSuccess:          "SUCCESS",
	ErrFormat:           "FORMAT",
	ErrNoCmd:            "NO_CMD",
	ErrNoField:          "NO_FIELD",
	ErrNoSeq:            "NO_SEQ",
	ErrNoLogin:          "NO_LOGIN",
	ErrValueNotExist:    "VALUE_NOT_EXIST",
	ErrNetwork:          "NETWORK",
	ErrResponse:         "RESPONSE",
	ErrNotReady:         "NOT_READY",
	ErrNoSupportCmd:     "NO_SUPPORT_CMD",
	ErrNoSupportValue:   "NO_SUPPORT_VALUE",
	ErrInvalidFieldType: "INVALID_FIELD_TYPE",
	ErrToken:            "TOKEN",
	ErrMarket:           "MARKET",
	ErrNamespace:        "NAMESPACE",
	ErrQualifiedName:    "QUALIFIED_NAME",
	ErrInvalidParameter: "INVALID_PARAMETER",
	ErrNoToken:          "NO_TOKEN",
	ErrExpireToken:      "EXPIRE_TOKEN",
	ErrNoSession:        "NO_SESSION",
	ErrNoIndex:          "NO_INDEX",
	ErrUserRate:         "USER_RATE",
	ErrUnknown:          "UNKNOWN",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", int32(c))
}
