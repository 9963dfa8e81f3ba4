package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

// RoomRepository reads the room inventory.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms ordered by LID, optionally limited to one hall type.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	query := `SELECT lid, hall_type, department, floor, total_seats, total_computers,
is_mass_hall, is_general_hall, is_mini_hall FROM rooms`
	args := []interface{}{}
	if filter.HallType != "" {
		query += ` WHERE hall_type = $1`
		args = append(args, filter.HallType)
	}
	query += ` ORDER BY lid ASC`

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
