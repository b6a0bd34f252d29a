// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/laborsched/internal/domain"
)

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%d|%s", c.Date.Format(time.DateOnly), c.Start, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	date, err := time.Parse(time.DateOnly, parts[0])
	if err != nil {
		return nil, err
	}
	start, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor start: %w", err)
	}
	return &domain.Cursor{Date: date, Start: start, ID: parts[2]}, nil
}
