// Package classify maps the 1..5 air quality index onto the status, style
// class, health text and map color shown to the user.
package classify

type Status int

const (
	Good Status = iota + 1
	Fair
	Moderate
	Poor
	VeryPoor
)

func (s Status) String() string {
	switch s {
	case Good:
		return "Good"
	case Fair:
		return "Fair"
	case Moderate:
		return "Moderate"
	case Poor:
		return "Poor"
	default:
		return "Very Poor"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Info struct {
	Status      Status `json:"status"`
	Class       string `json:"class"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

const (
	MinIndex = 1
	MaxIndex = 5
)

var table = [...]Info{
	{
		Status:      Good,
		Class:       "aqi-good",
		Description: "Air quality is considered satisfactory, and air pollution poses little or no risk.",
		Color:       "#00e400",
	},
	{
		Status:      Fair,
		Class:       "aqi-moderate",
		Description: "Air quality is acceptable; however, there may be a moderate health concern for a very small number of people.",
		Color:       "#ffff00",
	},
	{
		Status:      Moderate,
		Class:       "aqi-unhealthy-sensitive",
		Description: "Members of sensitive groups may experience health effects. The general public is not likely to be affected.",
		Color:       "#ff7e00",
	},
	{
		Status:      Poor,
		Class:       "aqi-unhealthy",
		Description: "Everyone may begin to experience health effects; members of sensitive groups may experience more serious health effects.",
		Color:       "#ff0000",
	},
	{
		Status:      VeryPoor,
		Class:       "aqi-very-unhealthy",
		Description: "Health warnings of emergency conditions. The entire population is more likely to be affected.",
		Color:       "#8f3f97",
	},
}

// outOfRange is returned for any index outside 1..5. It shares status, class
// and text with index 5 but uses the darker maroon.
var outOfRange = Info{
	Status:      VeryPoor,
	Class:       "aqi-very-unhealthy",
	Description: table[4].Description,
	Color:       "#7e0023",
}

// Classify returns the presentation tuple for index. It is total: zero,
// negative and large values all map to the severe default.
func Classify(index int) Info {
	if !InRange(index) {
		return outOfRange
	}
	return table[index-1]
}

// InRange reports whether index is a canonical 1..5 value.
func InRange(index int) bool {
	return index >= MinIndex && index <= MaxIndex
}
