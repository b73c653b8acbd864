package hl7

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMessageClone verifies that Clone deep-copies every nested value and handles nil.
func TestMessageClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Message)(nil).Clone())

	original := sampleMessage()
	original.Acknowledgment = &Acknowledgment{Code: "AA", ControlID: "17"}

	cloned := original.Clone()
	require.Equal(t, original, cloned)

	cloned.Header.ControlID = "18"
	*cloned.Header.AcceptAckType = "CA"
	cloned.Header.ProfileIdentifiers[0] = "other"
	cloned.Acknowledgment.Code = "AE"
	cloned.Results[0].Patient.Identity.Name[0] = "Doe^John"
	*cloned.Results[0].Patient.Visit.AssignedLocation = "ICU"
	cloned.Results[0].Patient.Notes[0].Comment[0] = "changed"
	cloned.Results[0].Order.FillerOrderNumber = "1^abc"
	cloned.Results[0].Observations[1].Observation.Values[0] = "99"
	*cloned.Results[0].Observations[1].Participations[0].ActionReason = "Not Delivered"

	require.Equal(t, sampleMessage().Header, original.Header)
	require.Equal(t, "AA", original.Acknowledgment.Code)
	require.Equal(t, sampleMessage().Results, original.Results)
}

// TestMessageObservations returns the first result's observations in order.
func TestMessageObservations(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Message)(nil).Observations())
	require.Nil(t, new(Message).Observations())

	obs := sampleMessage().Observations()
	require.Len(t, obs, 2)
	require.Equal(t, 1, obs[0].SetID)
	require.Equal(t, "1.1.1.2", obs[1].SubID)
}

// TestOptVal checks the optional value helpers.
func TestOptVal(t *testing.T) {
	t.Parallel()

	require.Empty(t, Val(nil))
	require.Equal(t, "", Val(Opt("")))
	require.NotNil(t, Opt(""))
	require.Equal(t, "x", Val(Opt("x")))
}
