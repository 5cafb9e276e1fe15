package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"parish/src-server/apperr"
	"parish/src-server/utils"

	"github.com/uptrace/bun"
)

type PostKind string

const (
	POST_KIND_NEWS    = PostKind("news")
	POST_KIND_BARTIK  = PostKind("bartik")  // parish newsletter
	POST_KIND_VESTNIK = PostKind("vestnik") // diocese bulletin
)

func (k PostKind) IsValid() bool {
	switch k {
	case POST_KIND_NEWS, POST_KIND_BARTIK, POST_KIND_VESTNIK:
		return true
	}
	return false
}

type Post struct {
	bun.BaseModel `bun:"table:posts"`

	ID          int64    `bun:"id,pk,autoincrement"`
	Title       string   `bun:"title,notnull"` // required
	Slug        string   `bun:"slug,notnull,unique"`
	Content     string   `bun:"content"`
	Kind        PostKind `bun:"kind,notnull,type:varchar"` // required
	PhotoPath   string   `bun:"photo_path"`
	PublishedAt int64    `bun:"published_at,notnull"`
	AddedBy     int64    `bun:"added_by,nullzero"`
	CreatedAt   int64    `bun:"created_at,notnull"`
	UpdatedAt   int64    `bun:"updated_at,notnull"`
}

func (p *Post) Upsert(ctx context.Context, db bun.IDB) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Kind == "" {
		p.Kind = POST_KIND_NEWS
	}
	switch {
	case p.Title == "":
		return fmt.Errorf("(*Post).Upsert: %w", invalid("title", "title is required"))
	case !p.Kind.IsValid():
		return fmt.Errorf("(*Post).Upsert: %w", invalid("kind", "unknown post kind"))
	}
	p.Slug = utils.Slugify(p.Title)
	if p.Slug == "" {
		return fmt.Errorf("(*Post).Upsert: %w", invalid("title", "title must contain a letter or a digit"))
	}

	now := time.Now().UTC().Unix()
	if p.PublishedAt == 0 {
		p.PublishedAt = now
	}
	p.UpdatedAt = now

	var err error
	switch p.ID {
	case 0:
		p.CreatedAt = now
		_, err = db.NewInsert().Model(p).Exec(ctx)
	default:
		var res sql.Result
		if res, err = db.NewUpdate().
			Model(p).
			ExcludeColumn("created_at", "added_by").
			WherePK().
			Exec(ctx); err == nil {
			err = affected(res, "post", p.ID)
		}
	}
	if err != nil {
		if _, ok := IsUniqueViolation(err); ok {
			return fmt.Errorf("(*Post).Upsert: %w", &apperr.DuplicateError{
				Field: "title",
				Msg:   "A post with this title already exists.",
				Err:   err,
			})
		}
		return fmt.Errorf("(*Post).Upsert: %w", err)
	}
	return nil
}

func GetPost(ctx context.Context, db bun.IDB, id int64) (*Post, error) {
	post := new(Post)
	if err := db.NewSelect().Model(post).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetPost: %w", notFound(err, "post", id))
	}
	return post, nil
}

func GetPostBySlug(ctx context.Context, db bun.IDB, slug string) (*Post, error) {
	post := new(Post)
	if err := db.NewSelect().Model(post).Where("slug = ?", slug).Scan(ctx); err != nil {
		return nil, fmt.Errorf("GetPostBySlug: %w", notFound(err, "post", slug))
	}
	return post, nil
}

// ListPosts returns the newest published posts first; empty kind lists every kind.
func ListPosts(ctx context.Context, db bun.IDB, kind PostKind, limit, offset int) ([]Post, int, error) {
	posts := make([]Post, 0)
	q := db.NewSelect().
		Model(&posts).
		Where("published_at <= ?", time.Now().UTC().Unix()).
		Order("published_at DESC").
		Limit(limit).
		Offset(offset)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPosts: %w", err)
	}
	return posts, total, nil
}

// DeletePost removes the row and its photo.
func DeletePost(ctx context.Context, db bun.IDB, id int64, remover Remover) error {
	post, err := GetPost(ctx, db, id)
	if err != nil {
		return fmt.Errorf("DeletePost: %w", err)
	}
	if _, err := db.NewDelete().Model((*Post)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("DeletePost: %w", err)
	}
	removePhoto(remover, post.PhotoPath)
	return nil
}

// ListPublishedPosts returns every post already published, newest first,
// with only the columns a link needs.
func ListPublishedPosts(ctx context.Context, db bun.IDB) ([]Post, error) {
	posts := make([]Post, 0)
	if err := db.NewSelect().
		Model(&posts).
		Column("id", "slug", "kind", "published_at", "updated_at").
		Where("published_at <= ?", time.Now().UTC().Unix()).
		Order("published_at DESC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListPublishedPosts: %w", err)
	}
	return posts, nil
}
