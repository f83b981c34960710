package game

// Round scoring. Points shrink with every assist (hint reveal or
// elimination) the participant spent and grow with the running streak.

const (
	BasePoints  = 100
	AssistDecay = 20
	FloorPoints = 20
)

// RoundPoints scores one correct answer. streak is the value after the
// increment for this round, so a first correct answer pays double the
// floor-adjusted base.
func RoundPoints(assists, streak int) int {
	pts := BasePoints - AssistDecay*assists
	if pts < FloorPoints {
		pts = FloorPoints
	}
	return pts * (1 + streak)
}
