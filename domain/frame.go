package domain

import "fmt"

// FrameType represents the type of a wire frame
type FrameType string

const (
	FrameTypeLogin          FrameType = "login"
	FrameTypeChat           FrameType = "chat"
	FrameTypeFile           FrameType = "file"
	FrameTypeHistoryRequest FrameType = "history_request"
	FrameTypeChatHistory    FrameType = "chat_history"
	FrameTypeUserList       FrameType = "user_list"
)

// ServerSender is the sender name attached to relay-generated notices.
const ServerSender = "Server"

// Frame is one discrete message unit exchanged over the wire protocol.
// Frames are flat JSON objects discriminated by the required Type field;
// the remaining fields are populated per type.
type Frame struct {
	Type FrameType `json:"type"`

	// login
	Username string `json:"username,omitempty"`

	// chat and file frames sent by the relay carry the originating user
	Sender string `json:"sender,omitempty"`

	// chat
	Message string `json:"message,omitempty"`

	// file
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`

	// chat_history
	History []Message `json:"history,omitempty"`

	// user_list
	Users []string `json:"users,omitempty"`
}

// NewLoginFrame creates a login frame
func NewLoginFrame(username string) *Frame {
	return &Frame{Type: FrameTypeLogin, Username: username}
}

// NewChatFrame creates a chat frame
func NewChatFrame(sender, message string) *Frame {
	return &Frame{Type: FrameTypeChat, Sender: sender, Message: message}
}

// NewFileFrame creates a file frame carrying an inline base64 payload
func NewFileFrame(sender, filename, fileData string) *Frame {
	return &Frame{Type: FrameTypeFile, Sender: sender, Filename: filename, FileData: fileData}
}

// NewHistoryRequestFrame creates a history_request frame
func NewHistoryRequestFrame() *Frame {
	return &Frame{Type: FrameTypeHistoryRequest}
}

// NewChatHistoryFrame creates a chat_history frame
func NewChatHistoryFrame(history []Message) *Frame {
	return &Frame{Type: FrameTypeChatHistory, History: history}
}

// NewUserListFrame creates a user_list frame
func NewUserListFrame(users []string) *Frame {
	return &Frame{Type: FrameTypeUserList, Users: users}
}

// Validate checks that the frame carries the fields its type requires.
func (f *Frame) Validate() error {
	switch f.Type {
	case FrameTypeLogin:
		if f.Username == "" {
			return fmt.Errorf("login frame requires a username")
		}
	case FrameTypeChat:
		if f.Message == "" {
			return fmt.Errorf("chat frame requires a message")
		}
	case FrameTypeFile:
		if f.Filename == "" {
			return fmt.Errorf("file frame requires a filename")
		}
		if f.FileData == "" {
			return fmt.Errorf("file frame requires file data")
		}
	case FrameTypeHistoryRequest, FrameTypeChatHistory, FrameTypeUserList:
		// no required fields beyond the type tag
	default:
		return fmt.Errorf("unknown frame type: %q", f.Type)
	}

	return nil
}
