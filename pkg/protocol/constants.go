// Package protocol defines the gofsh wire protocol: constants, the session
// token, message framing, command parsing, directory listings, replies and
// the inline transfer channel.
package protocol

// Protocol constants used by both gofshd and gofsh

const (
	// Network defaults
	DefaultHost = "127.0.0.1"
	DefaultPort = "65432"

	// Buffer sizes
	BufferSize     = 64 * 1024        // bufio size around each connection
	MaxMessageSize = 1024 * 1024      // largest control message accepted
	ChunkSize      = 32 * 1024        // transfer copy chunk
	TransferHeader = 8                // bytes in a transfer size header
	LengthHeader   = 4                // bytes in a length-framed message header
	MaxAccumulated = 10 * 1024 * 1024 // upper bound for MaxMessageSize in config

	// LegacyTransferBound is the single-read limit of the original
	// delimiter protocol. Transfers are no longer truncated at this size;
	// the client only warns when a file exceeds it in token framing mode.
	LegacyTransferBound = 409600

	// Token format: TokenOpen + TokenBody chars + TokenClose
	TokenOpen     = '<'
	TokenClose    = '>'
	TokenBody     = 8
	TokenLength   = TokenBody + 2
	TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^"

	// Framing modes
	FramingLength = "length"
	FramingToken  = "token"

	// Commands
	CmdCd    = "cd"
	CmdMkdir = "mkdir"
	CmdRm    = "rm"
	CmdMv    = "mv"
	CmdUl    = "ul"
	CmdDl    = "dl"
	CmdInfo  = "info"
	CmdExit  = "exit"

	// Parent directory argument for cd
	ParentDir = ".."

	// Reply status words
	StatusOK  = "OK"
	StatusErr = "ERR"

	// Listing layout
	ListingHeader = "Current Directory: "
	ListingMarker = "\n-- "
)
