package model

import (
	"strings"
	"testing"
)

func TestRoomStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to RoomStatus
		want     bool
	}{
		{RoomStatusWaiting, RoomStatusLocked, true},
		{RoomStatusLocked, RoomStatusActive, true},
		{RoomStatusActive, RoomStatusCompleted, true},
		{RoomStatusWaiting, RoomStatusActive, false},
		{RoomStatusActive, RoomStatusLocked, false},
		{RoomStatusCompleted, RoomStatusWaiting, false},
		{RoomStatusCompleted, RoomStatusCompleted, false},
		{RoomStatus("bogus"), RoomStatusLocked, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != RoomCodeLength {
			t.Fatalf("len(%q) = %d", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(RoomCodeAlphabet, c) {
				t.Fatalf("code %q has %q outside alphabet", code, c)
			}
		}
	}
}

func TestGenerateRoomCodeIsUniform(t *testing.T) {
	counts := make(map[rune]int)
	for i := 0; i < 12000; i++ {
		code, err := GenerateRoomCode()
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range code {
			counts[c]++
		}
	}
	if len(counts) != len(RoomCodeAlphabet) {
		t.Fatalf("saw %d distinct characters, want %d", len(counts), len(RoomCodeAlphabet))
	}

	// A byte-modulo mapping makes the first 256%36 letters about 14% more likely.
	var head, rest float64
	for i, c := range RoomCodeAlphabet {
		if i < 256%len(RoomCodeAlphabet) {
			head += float64(counts[c])
		} else {
			rest += float64(counts[c])
		}
	}
	head /= float64(256 % len(RoomCodeAlphabet))
	rest /= float64(len(RoomCodeAlphabet) - 256%len(RoomCodeAlphabet))
	if ratio := head / rest; ratio > 1.07 {
		t.Fatalf("leading characters over-represented: ratio %.3f", ratio)
	}
}

func TestMatchPlayerSlot(t *testing.T) {
	m := &Match{Player1ID: "alice", Player2ID: "bob"}
	if m.PlayerSlot("alice") != 1 || m.PlayerSlot("bob") != 2 || m.PlayerSlot("eve") != 0 {
		t.Fatal("unexpected slots")
	}
	if m.OpponentOf("alice") != "bob" || m.OpponentOf("eve") != "" {
		t.Fatal("unexpected opponent")
	}
}

func TestLanguageID(t *testing.T) {
	if id, ok := LanguageID("Python"); !ok || id != 71 {
		t.Fatalf("python = %d, %v", id, ok)
	}
	if id, _ := LanguageID("cpp"); id != 54 {
		t.Fatalf("cpp = %d", id)
	}
	if SupportedLanguage("cobol") {
		t.Fatal("cobol should not be supported")
	}
}
