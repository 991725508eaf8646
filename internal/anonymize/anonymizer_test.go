package anonymize

import (
	"testing"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymizeSelectivity(t *testing.T) {
	a := NewAnonymizer()

	out := a.Anonymize(models.Params{
		"email":  models.String("a@b.com"),
		"action": models.String("tap"),
	})

	email, ok := out["email"].AsString()
	require.True(t, ok)
	assert.Equal(t, HashValue("a@b.com"), email)
	assert.NotEqual(t, "a@b.com", email)

	action, ok := out["action"].AsString()
	require.True(t, ok)
	assert.Equal(t, "tap", action)
}

func TestAnonymizeKeyMatchIsCaseInsensitive(t *testing.T) {
	a := NewAnonymizer()

	out := a.Anonymize(models.Params{
		"USER_ID":      models.String("u-42"),
		"contactEmail": models.String("c@d.com"),
	})

	userID, _ := out["USER_ID"].AsString()
	assert.Equal(t, HashValue("u-42"), userID)

	contactEmail, _ := out["contactEmail"].AsString()
	assert.Equal(t, HashValue("c@d.com"), contactEmail)
}

func TestAnonymizeLeavesNonStringSensitiveValues(t *testing.T) {
	a := NewAnonymizer()

	// numeric user_id passes through unhashed; only strings are transformed
	out := a.Anonymize(models.Params{
		"user_id": models.Number(42),
	})

	n, ok := out["user_id"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, float64(42), n)
}

func TestAnonymizeDoesNotMutateInput(t *testing.T) {
	a := NewAnonymizer()

	in := models.Params{"email": models.String("a@b.com")}
	a.Anonymize(in)

	original, _ := in["email"].AsString()
	assert.Equal(t, "a@b.com", original)
}

func TestHashValueIsStable(t *testing.T) {
	assert.Equal(t, HashValue("a@b.com"), HashValue("a@b.com"))
	assert.NotEqual(t, HashValue("a@b.com"), HashValue("a@b.org"))
}
