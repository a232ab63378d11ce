package entity

const (
	// birthdates are plain calendar dates
	birthdateLayout string = "2006-01-02"
)
