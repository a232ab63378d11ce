package ops

// Comparison operators accepted by filter.Where. The values match the firestore query operators.
const (
	Equal          string = "=="
	NotEqual       string = "!="
	Greater        string = ">"
	GreaterOrEqual string = ">="
	Less           string = "<"
	LessOrEqual    string = "<="
	ArrayContains  string = "array-contains"
	In             string = "in"
)
