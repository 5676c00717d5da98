package nlu

import "testing"

func TestClassify_EmptyAndWhitespace(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n", "   \r\n  "} {
		intent, entities := Classify(in)
		if intent != IntentEmpty {
			t.Errorf("Classify(%q) intent = %q, want %q", in, intent, IntentEmpty)
		}
		if len(entities) != 0 {
			t.Errorf("Classify(%q) entities = %v, want none", in, entities)
		}
	}
}

func TestClassify_TimePhrases(t *testing.T) {
	for _, in := range []string{"what's the time", "What is the time?", "tell me the current time", "Time now please"} {
		intent, entities := Classify(in)
		if intent != IntentGetTime {
			t.Errorf("Classify(%q) = %q, want %q", in, intent, IntentGetTime)
		}
		if len(entities) != 0 {
			t.Errorf("Classify(%q) entities = %v, want none", in, entities)
		}
	}
}

func TestClassify_TimeWordAloneIsSmallTalk(t *testing.T) {
	intent, _ := Classify("I had a good time")
	if intent != IntentSmallTalk {
		t.Errorf("intent = %q, want %q", intent, IntentSmallTalk)
	}
}

func TestClassify_WeatherWithCity(t *testing.T) {
	intent, entities := Classify("weather in Paris")
	if intent != IntentWeather {
		t.Fatalf("intent = %q, want %q", intent, IntentWeather)
	}
	if got := entities.Get(EntityCity); got != "Paris" {
		t.Errorf("city = %q, want 'Paris'", got)
	}
}

func TestClassify_WeatherMultiWordCity(t *testing.T) {
	_, entities := Classify("What's the forecast in New York  ")
	if got := entities.Get(EntityCity); got != "New York" {
		t.Errorf("city = %q, want 'New York'", got)
	}
}

func TestClassify_WeatherWithoutCity(t *testing.T) {
	intent, entities := Classify("how is the weather")
	if intent != IntentWeather {
		t.Fatalf("intent = %q, want %q", intent, IntentWeather)
	}
	if _, ok := entities[EntityCity]; ok {
		t.Errorf("city should be absent, got %q", entities[EntityCity])
	}
}

func TestClassify_WeatherCityMustBeTrailing(t *testing.T) {
	_, entities := Classify("weather in paris tomorrow 2")
	if _, ok := entities[EntityCity]; ok {
		t.Errorf("city should be absent when the utterance ends in a digit, got %q", entities[EntityCity])
	}
}

func TestClassify_AnyWeatherMention(t *testing.T) {
	for _, in := range []string{"weather", "WEATHER!", "is the weather nice", "what's the time and weather"} {
		intent, _ := Classify(in)
		// time phrases outrank weather
		if in == "what's the time and weather" {
			if intent != IntentGetTime {
				t.Errorf("Classify(%q) = %q, want %q", in, intent, IntentGetTime)
			}
			continue
		}
		if intent != IntentWeather {
			t.Errorf("Classify(%q) = %q, want %q", in, intent, IntentWeather)
		}
	}
}

func TestClassify_SetAlarm(t *testing.T) {
	intent, entities := Classify("please set alarm 7:30 am")
	if intent != IntentSetAlarm {
		t.Fatalf("intent = %q, want %q", intent, IntentSetAlarm)
	}
	if got := entities.Get(EntityWhen); got != "7:30 am" {
		t.Errorf("when = %q, want '7:30 am'", got)
	}
}

func TestClassify_SetAlarmSplitWords(t *testing.T) {
	intent, entities := Classify("Can you set an alarm for 6 PM")
	if intent != IntentSetAlarm {
		t.Fatalf("intent = %q, want %q", intent, IntentSetAlarm)
	}
	if got := entities.Get(EntityWhen); got != "6 PM" {
		t.Errorf("when = %q, want '6 PM'", got)
	}
}

func TestClassify_SetAlarmWithoutTime(t *testing.T) {
	intent, entities := Classify("set alarm")
	if intent != IntentSetAlarm {
		t.Fatalf("intent = %q, want %q", intent, IntentSetAlarm)
	}
	if _, ok := entities[EntityWhen]; ok {
		t.Errorf("when should be absent, got %q", entities[EntityWhen])
	}
}

func TestClassify_AlarmWithoutSetIsSmallTalk(t *testing.T) {
	intent, _ := Classify("the alarm is loud")
	if intent != IntentSmallTalk {
		t.Errorf("intent = %q, want %q", intent, IntentSmallTalk)
	}
}

func TestClassify_PlayMusic(t *testing.T) {
	for _, in := range []string{"play a song", "Play some music", "play spotify"} {
		intent, entities := Classify(in)
		if intent != IntentPlayMusic {
			t.Errorf("Classify(%q) = %q, want %q", in, intent, IntentPlayMusic)
		}
		if len(entities) != 0 {
			t.Errorf("Classify(%q) entities = %v, want none", in, entities)
		}
	}
}

func TestClassify_PlayWithoutTargetIsSmallTalk(t *testing.T) {
	intent, _ := Classify("let's play a game")
	if intent != IntentSmallTalk {
		t.Errorf("intent = %q, want %q", intent, IntentSmallTalk)
	}
}

func TestClassify_SmallTalkFallback(t *testing.T) {
	intent, entities := Classify("hello there")
	if intent != IntentSmallTalk {
		t.Errorf("intent = %q, want %q", intent, IntentSmallTalk)
	}
	if entities == nil {
		t.Error("entities should never be nil")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	in := "What's the weather in London"
	i1, e1 := Classify(in)
	i2, e2 := Classify(in)
	if i1 != i2 || e1.Get(EntityCity) != e2.Get(EntityCity) {
		t.Errorf("Classify not deterministic: (%q,%v) vs (%q,%v)", i1, e1, i2, e2)
	}
	if e1.Get(EntityCity) != "London" {
		t.Errorf("city = %q, want 'London'", e1.Get(EntityCity))
	}
}

func TestClassifier_CustomRulesOrder(t *testing.T) {
	c := NewClassifier([]Rule{
		{Intent: IntentPlayMusic, Match: func(string) bool { return true }},
		{Intent: IntentGetTime, Match: func(string) bool { return true }},
	})
	intent, _ := c.Classify("anything")
	if intent != IntentPlayMusic {
		t.Errorf("first matching rule should win, got %q", intent)
	}
}

func TestDefaultRules_IndependentlyMatchable(t *testing.T) {
	cases := map[Intent]string{
		IntentEmpty:     "",
		IntentGetTime:   "current time",
		IntentWeather:   "forecast",
		IntentSetAlarm:  "set alarm",
		IntentPlayMusic: "play music",
	}
	for _, rule := range DefaultRules {
		in, ok := cases[rule.Intent]
		if !ok {
			t.Errorf("no case for rule %q", rule.Intent)
			continue
		}
		if !rule.Match(in) {
			t.Errorf("rule %q should match %q", rule.Intent, in)
		}
	}
}

func TestParseIntent(t *testing.T) {
	if got := ParseIntent("get_weather"); got != IntentWeather {
		t.Errorf("ParseIntent('get_weather') = %q", got)
	}
	if got := ParseIntent("bogus"); got != IntentSmallTalk {
		t.Errorf("ParseIntent('bogus') = %q, want small_talk", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hello World \n"); got != "hello world" {
		t.Errorf("Normalize = %q", got)
	}
}
