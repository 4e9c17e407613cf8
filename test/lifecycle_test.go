//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlmap"
)

type Mailbox struct {
	ID   int64  `db:"id,key"`
	Name string `db:"name"`
}

func (Mailbox) TableName() string { return "mailboxes" }

type Message struct {
	ID        int64     `db:"id,identity"`
	MailboxID int64     `db:"mailbox_id"`
	Status    int       `db:"status"`
	Subject   *string   `db:"subject"`
	CreatedAt time.Time `db:"created_at" insert:"CURRENT_TIMESTAMP" update:"-"`
}

func (Message) TableName() string { return "messages" }

func TestLifecycle(t *testing.T) {
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			runLifecycle(t, b.open(t))
		})
	}
}

func TestLifecycle_StmtCache(t *testing.T) {
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			db := b.open(t, sqlmap.WithStmtCache(32))
			runLifecycle(t, db)
			assert.Positive(t, db.StmtCacheStats().Hits+db.StmtCacheStats().Misses)
		})
	}
}

func runLifecycle(t *testing.T, db *sqlmap.DB) {
	ctx := context.Background()
	subject := "it's urgent"

	first := &Message{MailboxID: 1, Status: 1, Subject: &subject}
	require.NoError(t, db.Insert(ctx, first))
	assert.Positive(t, first.ID)

	batch := []Message{{MailboxID: 1, Status: 2}, {MailboxID: 2, Status: 1}, {MailboxID: 2, Status: 3}}
	n, err := db.InsertList(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var got Message
	require.NoError(t, db.GetByKey(ctx, &got, first.ID))
	require.NotNil(t, got.Subject)
	assert.Equal(t, subject, *got.Subject)
	assert.False(t, got.CreatedAt.IsZero())

	var unread []Message
	require.NoError(t, db.Select(ctx, &unread,
		sqlmap.And(sqlmap.Col("Status").Eq(1), sqlmap.In("MailboxID", []int64{1, 2})),
		sqlmap.Trailing("order by id")))
	require.Len(t, unread, 2)
	assert.Equal(t, first.ID, unread[0].ID)

	count, err := db.Count(ctx, Message{}, sqlmap.Col("MailboxID").Eq(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	affected, err := db.UpdateWhere(ctx, Message{}, sqlmap.Assignments{"Status": 9}, sqlmap.Col("MailboxID").Eq(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	_, err = db.Upsert(ctx, &Mailbox{ID: 1, Name: "inbox"})
	require.NoError(t, err)
	_, err = db.Upsert(ctx, &Mailbox{ID: 1, Name: "renamed"})
	require.NoError(t, err)
	var mb Mailbox
	require.NoError(t, db.GetByKey(ctx, &mb, 1))
	assert.Equal(t, "renamed", mb.Name)

	affected, err = db.Delete(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, db.Truncate(ctx, Message{}))
	ok, err := db.Exists(ctx, Message{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
