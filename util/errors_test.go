package util_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/specterops/recordcheck/util"
	"github.com/stretchr/testify/require"
)

func TestErrorCollector(t *testing.T) {
	var (
		collector = util.NewErrorCollector()
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		wg        = &sync.WaitGroup{}
	)

	require.NoError(t, collector.Combined())

	for _, err := range []error{errFirst, nil, errSecond} {
		wg.Add(1)

		go func() {
			defer wg.Done()
			collector.Add(err)
		}()
	}

	wg.Wait()

	combined := collector.Combined()
	require.Equal(t, 2, collector.Len())
	require.ErrorIs(t, combined, errFirst)
	require.ErrorIs(t, combined, errSecond)
}
