package nlu

// Intent is the symbolic classification of an utterance.
type Intent string

// Intent values, in the order the classifier tries them.
const (
	IntentEmpty     Intent = "empty"
	IntentGetTime   Intent = "get_time"
	IntentWeather   Intent = "get_weather"
	IntentSetAlarm  Intent = "set_alarm"
	IntentPlayMusic Intent = "play_music"
	IntentSmallTalk Intent = "small_talk"
)

// Entity names produced by the classifier.
const (
	EntityCity = "city"
	EntityWhen = "when"
)

// Entities maps an entity name to its extracted value. A missing key means
// the value was not found in the utterance.
type Entities map[string]string

// Get returns the named entity, or "" when it was not extracted.
func (e Entities) Get(name string) string {
	if e == nil {
		return ""
	}
	return e[name]
}

// ParseIntent maps a wire string to an Intent. Unknown strings fall back to
// small talk, which is also what the dispatcher does with them.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentEmpty, IntentGetTime, IntentWeather, IntentSetAlarm, IntentPlayMusic, IntentSmallTalk:
		return Intent(s)
	default:
		return IntentSmallTalk
	}
}
