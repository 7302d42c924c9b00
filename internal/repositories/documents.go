package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/pipeline"
)

type documentField struct {
	column string
	array  bool
}

type documentTable struct {
	table  string
	fields map[string]documentField
}

// documentTables maps collections onto tables. Credential columns are never listed.
var documentTables = map[string]documentTable{
	models.CollectionUsers: {table: "users", fields: map[string]documentField{
		"id":           {column: "id"},
		"username":     {column: "username"},
		"email":        {column: "email"},
		"fullName":     {column: "full_name"},
		"avatar":       {column: "avatar"},
		"coverImage":   {column: "cover_image"},
		"watchHistory": {column: "watch_history", array: true},
		"createdAt":    {column: "created_at"},
		"updatedAt":    {column: "updated_at"},
	}},
	models.CollectionVideos: {table: "videos", fields: map[string]documentField{
		"id":          {column: "id"},
		"ownerId":     {column: "owner_id"},
		"videoFile":   {column: "video_file"},
		"thumbnail":   {column: "thumbnail"},
		"title":       {column: "title"},
		"description": {column: "description"},
		"duration":    {column: "duration"},
		"views":       {column: "views"},
		"isPublished": {column: "is_published"},
		"createdAt":   {column: "created_at"},
		"updatedAt":   {column: "updated_at"},
	}},
	models.CollectionComments: {table: "comments", fields: map[string]documentField{
		"id":        {column: "id"},
		"videoId":   {column: "video_id"},
		"ownerId":   {column: "owner_id"},
		"content":   {column: "content"},
		"createdAt": {column: "created_at"},
		"updatedAt": {column: "updated_at"},
	}},
	models.CollectionTweets: {table: "tweets", fields: map[string]documentField{
		"id":        {column: "id"},
		"ownerId":   {column: "owner_id"},
		"content":   {column: "content"},
		"createdAt": {column: "created_at"},
		"updatedAt": {column: "updated_at"},
	}},
	models.CollectionLikes: {table: "likes", fields: map[string]documentField{
		"id":         {column: "id"},
		"likedBy":    {column: "liked_by"},
		"targetKind": {column: "target_kind"},
		"targetId":   {column: "target_id"},
		"createdAt":  {column: "created_at"},
	}},
	models.CollectionSubscriptions: {table: "subscriptions", fields: map[string]documentField{
		"id":           {column: "id"},
		"subscriberId": {column: "subscriber_id"},
		"channelId":    {column: "channel_id"},
		"createdAt":    {column: "created_at"},
	}},
	models.CollectionPlaylists: {table: "playlists", fields: map[string]documentField{
		"id":          {column: "id"},
		"ownerId":     {column: "owner_id"},
		"name":        {column: "name"},
		"description": {column: "description"},
		"videos":      {column: "video_ids", array: true},
		"createdAt":   {column: "created_at"},
		"updatedAt":   {column: "updated_at"},
	}},
}

var timestampFields = map[string]struct{}{"createdAt": {}, "updatedAt": {}}

// PostgresDocumentSource serves pipeline reads from PostgreSQL rows rendered as JSON documents.
type PostgresDocumentSource struct {
	pool db.Pool
}

// NewPostgresDocumentSource constructs a pipeline source over pool.
func NewPostgresDocumentSource(pool db.Pool) *PostgresDocumentSource {
	return &PostgresDocumentSource{pool: pool}
}

// Scan returns the collection's rows, narrowed by the equality predicates on
// known scalar fields. Other predicates are left to the composer.
func (s *PostgresDocumentSource) Scan(ctx context.Context, collection string, filter []pipeline.Predicate) ([]pipeline.Record, error) {
	tbl, ok := documentTables[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	var (
		where []string
		args  []any
	)
	for _, p := range filter {
		if p.Op != pipeline.OpEq || p.Value == nil {
			continue
		}
		f, ok := tbl.fields[p.Field]
		if !ok {
			continue
		}
		args = append(args, p.Value)
		if f.array {
			where = append(where, fmt.Sprintf("$%d::TEXT = ANY(%s)", len(args), f.column))
		} else {
			where = append(where, fmt.Sprintf("%s = $%d", f.column, len(args)))
		}
	}

	query := "SELECT " + tbl.document() + " FROM " + tbl.table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.query(ctx, "scan "+collection, query, args...)
}

// Lookup returns the rows whose field matches any of values.
func (s *PostgresDocumentSource) Lookup(ctx context.Context, collection, field string, values []any) ([]pipeline.Record, error) {
	tbl, ok := documentTables[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	f, ok := tbl.fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %s.%s", collection, field)
	}
	if len(values) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		keys = append(keys, fmt.Sprint(v))
	}

	cond := fmt.Sprintf("%s::TEXT = ANY($1)", f.column)
	if f.array {
		cond = fmt.Sprintf("%s && $1::TEXT[]", f.column)
	}
	query := "SELECT " + tbl.document() + " FROM " + tbl.table + " WHERE " + cond
	return s.query(ctx, "lookup "+collection, query, keys)
}

func (s *PostgresDocumentSource) query(ctx context.Context, op, query string, args ...any) ([]pipeline.Record, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, op)
	}
	defer rows.Close()

	var out []pipeline.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classify(err, op)
		}
		rec, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, op)
	}
	return out, nil
}

// document renders the jsonb_build_object expression for the table's fields.
func (t documentTable) document() string {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		f := t.fields[name]
		col := f.column
		if f.array {
			col = fmt.Sprintf("COALESCE(%s, '{}')", f.column)
		}
		parts = append(parts, fmt.Sprintf("'%s', %s", name, col))
	}
	return "jsonb_build_object(" + strings.Join(parts, ", ") + ")"
}

func decodeDocument(raw []byte) (pipeline.Record, error) {
	var rec pipeline.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for field := range timestampFields {
		s, ok := rec[field].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			rec[field] = t.UTC()
		}
	}
	return rec, nil
}
