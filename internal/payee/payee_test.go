package payee

import (
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRef(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	id := node.Generate()

	ref, err := NewRef(TypeUser, id)
	require.NoError(t, err)
	assert.Equal(t, TypeUser, ref.Type)
	assert.False(t, ref.IsZero())

	_, err = NewRef(Type("team"), id)
	assert.ErrorIs(t, err, ErrInvalidPayee)

	_, err = NewRef(TypeOrganization, 0)
	assert.ErrorIs(t, err, ErrInvalidPayee)
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef(" Organization ", " 1539674407524372480 ")
	require.NoError(t, err)
	assert.Equal(t, TypeOrganization, ref.Type)
	assert.Equal(t, "organization:1539674407524372480", ref.String())

	_, err = ParseRef("user", "not-a-number")
	assert.ErrorIs(t, err, ErrInvalidPayee)

	_, err = ParseRef("robot", "1539674407524372480")
	assert.ErrorIs(t, err, ErrInvalidPayee)
}

func TestLockerSerializesPerPayee(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ref, err := NewRef(TypeUser, node.Generate())
	require.NoError(t, err)

	locker := NewLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(ref)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLockerIndependentPayees(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	first, err := NewRef(TypeUser, node.Generate())
	require.NoError(t, err)
	second, err := NewRef(TypeUser, node.Generate())
	require.NoError(t, err)

	locker := NewLocker()
	unlockFirst := locker.Lock(first)

	// Holding one payee's lock must not block another payee.
	unlockSecond := locker.Lock(second)
	unlockSecond()
	unlockFirst()
}
