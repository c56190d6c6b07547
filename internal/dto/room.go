package dto

import "time"

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	CreatorID       string `json:"creator_id"`
}

type JoinRoomRequest struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id,omitempty"`
	Audio        bool   `json:"audio"`
	Video        bool   `json:"video"`
}

type LeaveRoomRequest struct {
	UserID string `json:"user_id"`
}

type MediaUpdateRequest struct {
	Audio  *bool `json:"audio,omitempty"`
	Video  *bool `json:"video,omitempty"`
	Screen *bool `json:"screen,omitempty"`
}

type ParticipantResponse struct {
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Audio        bool      `json:"audio"`
	Video        bool      `json:"video"`
	Screen       bool      `json:"screen"`
	JoinedAt     time.Time `json:"joined_at"`
}

type RoomResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	CreatedBy       string                `json:"created_by"`
	MaxParticipants int                   `json:"max_participants"`
	CreatedAt       time.Time             `json:"created_at"`
	IsActive        bool                  `json:"is_active"`
	Participants    []ParticipantResponse `json:"participants"`
}

type RoomListResponse struct {
	Total int            `json:"total"`
	Rooms []RoomResponse `json:"rooms"`
}
