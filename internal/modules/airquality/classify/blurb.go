package classify

// Line is one labelled sentence of a blurb.
type Line struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Blurb is the light-hearted commentary shown under the health text.
type Blurb struct {
	Headline Line   `json:"headline"`
	Lines    []Line `json:"lines"`
}

var blurbs = [...]Blurb{
	{
		Headline: Line{"Congratulations!", "The air is so clean, you could probably bottle it and sell it as premium oxygen! 🌟"},
		Lines: []Line{
			{"Recommended activity:", "Go outside and take the deepest breath of your life. Your lungs will thank you!"},
			{"Fun fact:", "This air quality is rarer than finding a parking spot in downtown during rush hour!"},
		},
	},
	{
		Headline: Line{"Not bad!", "The air quality is like a decent pizza - not perfect, but definitely acceptable! 🍕"},
		Lines: []Line{
			{"Recommended activity:", "Perfect weather for a jog, just don't expect to break any Olympic records."},
			{"Pro tip:", "This is as good as it gets in most cities. Enjoy it while it lasts!"},
		},
	},
	{
		Headline: Line{"Meh...", "The air quality is like your WiFi connection - works most of the time, but you notice when it doesn't! 📶"},
		Lines: []Line{
			{"Recommended activity:", "Indoor yoga or contemplating why you didn't move to the mountains yet."},
			{"Survival tip:", "If you're sensitive, maybe save the marathon training for another day."},
		},
	},
	{
		Headline: Line{"Yikes!", "The air quality is like a bad relationship - everyone can see it's not good for you! 💔"},
		Lines: []Line{
			{"Recommended activity:", "Netflix and chill (literally, stay inside and chill)."},
			{"Bright side:", "Great excuse to avoid that outdoor team building event you didn't want to attend!"},
		},
	},
	{
		Headline: Line{"ABORT MISSION!", "The air quality is so bad, even the plants are wearing masks! 😷🌱"},
		Lines: []Line{
			{"Recommended activity:", "Indoor meditation on why you chose to live here. Maybe online shopping for air purifiers?"},
			{"Emergency kit:", "Masks, indoor plants, and a strong internet connection for house hunting in cleaner areas!"},
			{"Fun fact:", "You're basically living in a real-life science experiment about human resilience!"},
		},
	},
}

// BlurbFor follows the same clamp as Classify: anything outside 1..5 gets
// the severe text.
func BlurbFor(index int) Blurb {
	if !InRange(index) {
		return blurbs[MaxIndex-1]
	}
	return blurbs[index-1]
}
