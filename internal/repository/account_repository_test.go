package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
)

func TestAccountRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newDBForTest(t))

	acct := &domain.Account{Email: " Ada@Example.com ", Name: "Ada", Role: domain.RoleStudent, PasswordHash: "x"}
	if err := repo.Create(ctx, acct); err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", acct.Email)
	}
	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	if err != nil || byEmail.ID != acct.ID {
		t.Fatalf("find by email: %+v %v", byEmail, err)
	}
	byID, err := repo.FindByID(ctx, acct.ID)
	if err != nil || byID.Name != "Ada" {
		t.Fatalf("find by id: %+v %v", byID, err)
	}
	if _, err := repo.FindByID(ctx, acct.ID+100); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepositoryRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newDBForTest(t))
	if err := repo.Create(ctx, &domain.Account{Email: "a@example.com", Name: "A", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &domain.Account{Email: "A@example.com", Name: "B", PasswordHash: "y"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	other := &domain.Account{Email: "b@example.com", Name: "B", PasswordHash: "y"}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}
	other.Email = "a@example.com"
	if err := repo.Update(ctx, other); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on update, got %v", err)
	}
}

func TestContentRepositoryPagingAndStats(t *testing.T) {
	ctx := context.Background()
	db := newDBForTest(t)
	if err := SeedContent(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SeedContent(ctx, db); err != nil {
		t.Fatalf("seeding twice must be a no-op: %v", err)
	}
	repo := NewContentRepository(db)

	page, err := repo.ListArticles(ctx, PageRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Body != "" {
		t.Fatal("list must not load article bodies")
	}

	quiz, err := repo.FindQuiz(ctx, 1)
	if err != nil || quiz.Questions != 5 {
		t.Fatalf("find quiz: %+v %v", quiz, err)
	}
	if _, err := repo.FindQuiz(ctx, 999); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}

	if err := NewAccountRepository(db).Create(ctx, &domain.Account{Email: "root@example.com", Name: "Root", Role: domain.RoleAdmin, PasswordHash: "x"}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Accounts != 1 || stats.Admins != 1 || stats.Articles != 3 || stats.Quizzes != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
