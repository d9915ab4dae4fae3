package ledger

// Level is one row of the fixed point-to-level table.
type Level struct {
	Level     int
	MinPoints int64
	Title     string
}

// Levels is sorted by MinPoints ascending.
var Levels = []Level{
	{Level: 1, MinPoints: 0, Title: "Intern"},
	{Level: 2, MinPoints: 100, Title: "Junior Developer"},
	{Level: 3, MinPoints: 200, Title: "Developer"},
	{Level: 4, MinPoints: 350, Title: "Senior Developer"},
	{Level: 5, MinPoints: 550, Title: "Staff Engineer"},
	{Level: 6, MinPoints: 800, Title: "Principal Engineer"},
	{Level: 7, MinPoints: 1100, Title: "Distinguished Engineer"},
	{Level: 8, MinPoints: 1500, Title: "Fellow"},
}

// LevelFor returns the highest level whose threshold is covered by points.
func LevelFor(points int64) Level {
	current := Levels[0]
	for _, l := range Levels[1:] {
		if points < l.MinPoints {
			break
		}
		current = l
	}
	return current
}

// NextLevel returns the level after lvl, or false at the top of the table.
func NextLevel(lvl int) (Level, bool) {
	for _, l := range Levels {
		if l.Level == lvl+1 {
			return l, true
		}
	}
	return Level{}, false
}
