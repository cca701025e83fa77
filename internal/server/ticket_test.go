package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_RoundTrip(t *testing.T) {
	issuer := NewTicketIssuer("secret")

	ticket, err := issuer.Issue(7)
	require.NoError(t, err)

	id, err := issuer.Verify(ticket)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)
}

func TestTicket_WrongSecret(t *testing.T) {
	ticket, err := NewTicketIssuer("a").Issue(7)
	require.NoError(t, err)

	_, err = NewTicketIssuer("b").Verify(ticket)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicket_Expired(t *testing.T) {
	issuer := NewTicketIssuer("secret")
	ticket, err := issuer.Issue(7)
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(TicketTTL + time.Minute) }
	_, err = issuer.Verify(ticket)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicket_Garbage(t *testing.T) {
	_, err := NewTicketIssuer("secret").Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicket_UniquePerIssue(t *testing.T) {
	issuer := NewTicketIssuer("secret")
	fixed := time.Unix(1700000000, 0)
	issuer.now = func() time.Time { return fixed }

	a, err := issuer.Issue(7)
	require.NoError(t, err)
	b, err := issuer.Issue(7)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
