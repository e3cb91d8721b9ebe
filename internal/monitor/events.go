package monitor

// Direction is the sign of a gear change.
type Direction int

const (
	DirectionUp   Direction = 1
	DirectionDown Direction = -1
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "upshift"
	}
	return "downshift"
}

// GearChange fires when the gear value differs from the previous tick.
type GearChange struct {
	From      int
	To        int
	Direction Direction
}

// AccelStatus classifies the abruptness of a longitudinal acceleration
// change.
type AccelStatus string

const (
	AccelNormal   AccelStatus = "NORMAL"
	AccelModerate AccelStatus = "MODERATE"
	AccelAbrupt   AccelStatus = "ABRUPT"
)

// Jerk is the tick-to-tick longitudinal acceleration delta with its
// classification and a unitless intensity score for downstream use.
type Jerk struct {
	Delta  float64
	Factor float64
	Status AccelStatus
}
