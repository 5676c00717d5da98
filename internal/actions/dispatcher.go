package actions

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/windoze95/voicepack-api/internal/nlu"
	"github.com/windoze95/voicepack-api/internal/weather"
)

const (
	ReplyWeatherFailed = "I couldn't fetch the weather right now."
	ReplyPlayMusic     = "Playing music isn’t wired up yet. In a real app, I’d call your player."
	ReplyEmpty         = "I didn’t catch that. Please try again."
	ReplySmallTalk     = "I'm your assistant. Ask me the time, weather, or set an alarm."
	DefaultCity        = "London"
	defaultAlarmWhen   = "soon"
	timeReplyLayout    = "03:04 PM"
	cityNotFoundFormat = "I couldn't find weather for %s."
	temperatureFormat  = "The current temperature in %s is %d°C."
	alarmConfirmFormat = "Okay, I will set an alarm for %s (demo)."
	timeReplyFormat    = "It's %s."
)

// WeatherLookup resolves a city to its current conditions.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) weather.Result
}

// Dispatcher turns a classified intent into a reply sentence.
type Dispatcher struct {
	weather WeatherLookup
	now     func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source used for time-of-day replies.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. A nil weather lookup makes every
// weather request answer with the fetch-failed reply.
func NewDispatcher(w WeatherLookup, opts ...Option) *Dispatcher {
	d := &Dispatcher{weather: w, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch returns the reply for intent. It always returns a non-empty
// string; upstream failures become apologetic replies.
func (d *Dispatcher) Dispatch(ctx context.Context, intent nlu.Intent, entities nlu.Entities) string {
	switch intent {
	case nlu.IntentGetTime:
		return fmt.Sprintf(timeReplyFormat, d.now().Format(timeReplyLayout))

	case nlu.IntentWeather:
		return d.weatherReply(ctx, strings.TrimSpace(entities.Get(nlu.EntityCity)))

	case nlu.IntentSetAlarm:
		when := strings.TrimSpace(entities.Get(nlu.EntityWhen))
		if when == "" {
			when = defaultAlarmWhen
		}
		return fmt.Sprintf(alarmConfirmFormat, when)

	case nlu.IntentPlayMusic:
		return ReplyPlayMusic

	case nlu.IntentEmpty:
		return ReplyEmpty

	default:
		return ReplySmallTalk
	}
}

func (d *Dispatcher) weatherReply(ctx context.Context, city string) string {
	if city == "" {
		city = DefaultCity
	}
	city = TitleCase(city)
	if d.weather == nil {
		return ReplyWeatherFailed
	}

	res := d.weather.Lookup(ctx, city)
	switch res.Status {
	case weather.StatusOK:
		return fmt.Sprintf(temperatureFormat, city, RoundCelsius(res.TemperatureC))
	case weather.StatusNotFound:
		return fmt.Sprintf(cityNotFoundFormat, city)
	default:
		return ReplyWeatherFailed
	}
}

// RoundCelsius rounds half to even, so 12.5 becomes 12 and 13.5 becomes 14.
func RoundCelsius(c float64) int {
	return int(math.RoundToEven(c))
}

// TitleCase upper-cases the first letter of each word and lower-cases the
// rest. Any non-letter starts a new word.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
