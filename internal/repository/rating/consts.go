package rating

import "go-firestore-ratings/internal/model"

// DefaultScore pre-fills a category nobody rated yet.
const DefaultScore int = 50

var knownCategories = map[string]model.Category{
	"emotionalRange": {
		Name:        "emotionalRange",
		Label:       "Emotional Range",
		Explanation: "The ability to portray a wide spectrum of feelings authentically.",
	},
	"vocalDelivery": {
		Name:        "vocalDelivery",
		Label:       "Vocal Delivery",
		Explanation: "Clarity, projection, and emotional tone of voice.",
	},
	"physicality": {
		Name:        "physicality",
		Label:       "Physicality & Movement",
		Explanation: "How an actor uses their body, posture, and gestures to build a character.",
	},
	"screenPresence": {
		Name:        "screenPresence",
		Label:       "Screen Presence",
		Explanation: "The magnetic quality that captures and holds the audience's attention.",
	},
	"consistency": {
		Name:        "consistency",
		Label:       "Consistency",
		Explanation: "Delivering a believable performance repeatedly across different takes and scenes.",
	},
	"timingAndPacing": {
		Name:        "timingAndPacing",
		Label:       "Timing and Pacing",
		Explanation: "Delivering lines and actions at the right moment for impact.",
	},
	"chemistry": {
		Name:        "chemistry",
		Label:       "Chemistry",
		Explanation: "The believable, compelling dynamic with scene partners.",
	},
}
