package model

import "time"

const (
	NameFieldPath      string = "name"
	NameKeyFieldPath   string = "nameKey"
	BirthdateFieldPath string = "birthdate"
	ImageUrlFieldPath  string = "imageUrl"
	CreatedByFieldPath string = "createdBy"
)

// Entity is a rated actor. Birthdate is an optional YYYY-MM-DD date.
type Entity struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	NameKey   string    `json:"nameKey"`
	Birthdate string    `json:"birthdate,omitempty"`
	ImageUrl  string    `json:"imageUrl,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e Entity) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		IdFieldPath:        e.Id,
		NameFieldPath:      e.Name,
		NameKeyFieldPath:   e.NameKey,
		CreatedByFieldPath: e.CreatedBy,
		CreatedAtFieldPath: e.CreatedAt,
	}
	if e.Birthdate != "" {
		fields[BirthdateFieldPath] = e.Birthdate
	}
	if e.ImageUrl != "" {
		fields[ImageUrlFieldPath] = e.ImageUrl
	}
	return fields
}
