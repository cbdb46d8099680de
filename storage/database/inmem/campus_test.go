package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/universidad/core/campus"
	"github.com/trezcool/universidad/testutil"
)

func TestCampusRepository_QueryGradeReport(t *testing.T) {
	env := testutil.NewEnv(t)
	c := env.Populate(t)
	enr := env.Enrollment(t, c.Student1.ID, c.Subject.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	env.Grade(t, c.Student1.ID, enr.ID, 6)
	env.Grade(t, c.Student1.ID, enr.ID, 8)

	t.Run("aggregates", func(t *testing.T) {
		ctx := context.Background()
		err := env.Store.View(ctx, func(repo campus.Repository) error {
			rows, err := repo.QueryGradeReport(ctx, campus.ReportFilter{})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, 2, rows[0].Count)
			assert.Equal(t, 7.0, rows[0].Average)
			assert.Equal(t, 7.7, rows[0].Adjusted)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := env.Store.View(ctx, func(repo campus.Repository) error {
			cancel()
			rows, err := repo.QueryGradeReport(ctx, campus.ReportFilter{})
			assert.Nil(t, rows)
			return err
		})
		assert.Equal(t, context.Canceled, err)
	})
}
