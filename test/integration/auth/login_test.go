// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/devices/internal/api"
	"github.com/holomush/devices/internal/auth"
	"github.com/holomush/devices/internal/auth/postgres"
	"github.com/holomush/devices/internal/store"
)

const jwtSecret = "integration-secret-0123456789abcdef"

var _ = Describe("Login against PostgreSQL", func() {
	var (
		session  *store.Session
		repo     *postgres.UserRepository
		verifier *auth.PooledVerifier
		router   *gin.Engine
		aliceID  uuid.UUID
	)

	login := func(username, password string) *httptest.ResponseRecorder {
		body := `{"username":"` + username + `","password":"` + password + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		truncateUsers()
		gin.SetMode(gin.TestMode)

		var err error
		session, err = store.OpenSession(suiteCtx, pool)
		Expect(err).NotTo(HaveOccurred())
		repo = postgres.NewUserRepository(session)

		hash, err := auth.NewArgon2idHasher().Hash("correct horse")
		Expect(err).NotTo(HaveOccurred())
		aliceID = uuid.New()
		Expect(repo.Create(suiteCtx, postgres.User{
			ID:           aliceID,
			Username:     "alice",
			PasswordHash: hash,
			Roles:        []string{"admin"},
			Permissions:  []string{"read:devices"},
		})).To(Succeed())

		verifier = auth.NewPooledVerifier(2)
		validator, err := auth.NewValidator(repo, verifier)
		Expect(err).NotTo(HaveOccurred())
		codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte(jwtSecret)})
		Expect(err).NotTo(HaveOccurred())
		authn, err := auth.NewAuthenticator(codec)
		Expect(err).NotTo(HaveOccurred())

		router, err = api.NewRouter(api.Deps{
			Validator:     validator,
			Codec:         codec,
			Authenticator: authn,
			TokenTTL:      time.Hour,
			Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		verifier.Close()
		Expect(session.Close(suiteCtx)).To(Succeed())
	})

	Describe("UserRepository", func() {
		It("returns the stored credential with its grants", func() {
			cred, err := repo.Lookup(suiteCtx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(cred.UserID).To(Equal(aliceID))
			Expect(cred.Roles).To(Equal([]string{"admin"}))
			Expect(cred.Permissions).To(Equal([]string{"read:devices"}))
			Expect(cred.PasswordHash.Expose()).To(HavePrefix("$argon2id$"))
		})

		It("reports unknown usernames as not found", func() {
			_, err := repo.Lookup(suiteCtx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rejects a duplicate username", func() {
			err := repo.Create(suiteCtx, postgres.User{ID: uuid.New(), Username: "alice", PasswordHash: "x"})
			Expect(err).To(MatchError(postgres.ErrUsernameTaken))
		})

		It("upserts grants and keeps the existing id", func() {
			Expect(repo.Upsert(suiteCtx, postgres.User{
				ID:           uuid.New(),
				Username:     "alice",
				PasswordHash: "replaced",
				Permissions:  []string{"read:devices", "create:device"},
			})).To(Succeed())

			cred, err := repo.Lookup(suiteCtx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(cred.UserID).To(Equal(aliceID))
			Expect(cred.Roles).To(BeEmpty())
			Expect(cred.Permissions).To(ConsistOf("read:devices", "create:device"))
		})

		It("fails once the session is closed", func() {
			Expect(session.Close(suiteCtx)).To(Succeed())
			_, err := repo.Lookup(suiteCtx, "alice")
			Expect(err).To(MatchError(store.ErrSessionClosed))
		})
	})

	Describe("HTTP login", func() {
		It("issues a token that identifies the user", func() {
			rec := login("alice", "correct horse")
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			var resp api.LoginResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())

			me := get("/api/v1/me", resp.Token)
			Expect(me.Code).To(Equal(http.StatusOK))
			Expect(me.Body.String()).To(ContainSubstring(aliceID.String()))

			Expect(get("/api/v1/admin/health", resp.Token).Code).To(Equal(http.StatusOK))
			Expect(get("/api/v1/devices", resp.Token).Code).To(Equal(http.StatusOK))
		})

		It("answers wrong password and unknown user identically", func() {
			wrong := login("alice", "battery staple")
			unknown := login("mallory", "battery staple")

			Expect(wrong.Code).To(Equal(http.StatusUnauthorized))
			Expect(unknown.Code).To(Equal(http.StatusUnauthorized))
			Expect(wrong.Body.String()).To(MatchJSON(unknown.Body.String()))
			Expect(wrong.Body.String()).To(MatchJSON(`{"status_code":401,"error_message":"invalid credentials"}`))
		})

		It("serialises concurrent logins over the shared session", func() {
			var wg sync.WaitGroup
			codes := make([]int, 8)
			for i := range codes {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					codes[i] = login("alice", "correct horse").Code
				}(i)
			}
			wg.Wait()

			for _, code := range codes {
				Expect(code).To(Equal(http.StatusOK))
			}
		})
	})
})
