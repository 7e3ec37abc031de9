package chessdto

import "time"

// Player is a seated or spectating identity as clients see it.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MoveDTO is one applied move.
type MoveDTO struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	UCI       string `json:"uci"`
	Color     string `json:"color"`
	Ply       int    `json:"ply"`
}

// GameState is the full snapshot sent on join, after every move and on reset.
type GameState struct {
	RoomID      string    `json:"roomId"`
	Status      string    `json:"status"`
	FEN         string    `json:"fen"`
	Turn        string    `json:"turn"`
	InCheck     bool      `json:"inCheck"`
	IsGameOver  bool      `json:"isGameOver"`
	Termination string    `json:"termination,omitempty"`
	Winner      string    `json:"winner,omitempty"`
	Result      string    `json:"result"`
	Moves       []MoveDTO `json:"moves"`
	White       *Player   `json:"white,omitempty"`
	Black       *Player   `json:"black,omitempty"`
	Spectators  []Player  `json:"spectators"`
	ECO         string    `json:"eco,omitempty"`
	Opening     string    `json:"opening,omitempty"`
	Version     uint64    `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RoomSummary is one row of the room listing.
type RoomSummary struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	White      string `json:"white,omitempty"`
	Black      string `json:"black,omitempty"`
	Spectators int    `json:"spectators"`
	Moves      int    `json:"moves"`
}
