package model

import "time"

const (
	UserIdFieldPath         string = "userId"
	DisplayNameFieldPath    string = "displayName"
	CategoryScoresFieldPath string = "categoryScores"
	OverallScoreFieldPath   string = "overallScore"
	UpdatedAtFieldPath      string = "updatedAt"
)

// RatingRecord is one user's current rating of one entity, stored at the user id.
type RatingRecord struct {
	UserId         string         `json:"userId"`
	DisplayName    string         `json:"displayName"`
	CategoryScores map[string]int `json:"categoryScores"`
	OverallScore   float64        `json:"overallScore"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

func (r RatingRecord) Fields() map[string]interface{} {
	return map[string]interface{}{
		UserIdFieldPath:         r.UserId,
		DisplayNameFieldPath:    r.DisplayName,
		CategoryScoresFieldPath: r.CategoryScores,
		OverallScoreFieldPath:   r.OverallScore,
		UpdatedAtFieldPath:      r.UpdatedAt,
	}
}

// Scores are the live averages of an entity. They are never stored.
type Scores struct {
	Categories map[string]float64 `json:"categories"`
	Overall    float64            `json:"overall"`
	Count      int                `json:"count"`
	Seq        int64              `json:"seq"`
}

// Category describes one scored acting skill.
type Category struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Explanation string `json:"explanation"`
}
