package models_test

import (
	"testing"

	"pairup/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMeta_Normalize(t *testing.T) {
	meta := models.Meta{Locale: " UK ", Language: "EN", Industry: " Fintech", SkillBucket: "Senior "}

	got := meta.Normalize()

	assert.Equal(t, "uk", got.Locale)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "fintech", got.Industry)
	assert.Equal(t, "senior", got.SkillBucket)
	assert.True(t, got.HasMatchingAttributes())
	assert.False(t, models.Meta{UserAgent: "curl"}.HasMatchingAttributes())
}

func TestChatRoom_Other(t *testing.T) {
	room := models.ChatRoom{RoomID: "1", User1ID: "a", User2ID: "b"}

	other, ok := room.Other("a")
	assert.True(t, ok)
	assert.Equal(t, "b", other)

	other, ok = room.Other("b")
	assert.True(t, ok)
	assert.Equal(t, "a", other)

	_, ok = room.Other("c")
	assert.False(t, ok, "non-members have no peer")
	_, ok = room.Other("")
	assert.False(t, ok)

	assert.True(t, room.Has("a"))
	assert.False(t, room.Has("c"))
}
