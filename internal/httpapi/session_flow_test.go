// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/auth/memstore"
	"github.com/fashionhall/storefront/internal/httpapi"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

var _ = Describe("Session flow", func() {
	var (
		server *httptest.Server
		users  *memstore.UserRepository
		client *http.Client
		now    time.Time
		clock  sync.Mutex
	)

	call := func(method, path, body string) (int, apiResponse) {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var out apiResponse
		Expect(json.Unmarshal(raw, &out)).To(Succeed(), string(raw))
		return resp.StatusCode, out
	}

	sessionCookie := func() *http.Cookie {
		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		for _, c := range client.Jar.Cookies(u) {
			if c.Name == auth.SessionCookieName {
				return c
			}
		}
		return nil
	}

	BeforeEach(func() {
		now = time.Now()
		users = memstore.NewUserRepository()
		hasher, err := auth.NewHasher(auth.HashBcrypt, bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		tokens, err := auth.NewTokenService([]byte("suite-secret"), auth.WithClock(func() time.Time {
			clock.Lock()
			defer clock.Unlock()
			return now
		}))
		Expect(err).NotTo(HaveOccurred())
		svc, err := auth.NewService(users, hasher, tokens, auth.WithLogger(slog.New(slog.DiscardHandler)))
		Expect(err).NotTo(HaveOccurred())

		handler, err := httpapi.NewHandler(httpapi.Config{
			Auth:   svc,
			Cookie: auth.NewSessionCookie(false),
			Logger: slog.New(slog.DiscardHandler),
		})
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(handler)
		DeferCleanup(server.Close)

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{Jar: jar}
		DeferCleanup(client.CloseIdleConnections)
	})

	It("registers, reads the session, logs out and loses the session", func() {
		status, body := call(http.MethodPost, "/auth/register",
			`{"email":"a@b.com","password":"secret1","name":"A"}`)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Success).To(BeTrue())
		Expect(body.User.ID).To(Equal(int64(1)))
		Expect(sessionCookie()).NotTo(BeNil())

		status, body = call(http.MethodGet, "/auth/me", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.User.Email).To(Equal("a@b.com"))

		status, body = call(http.MethodPost, "/auth/logout", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Message).To(Equal("logged out"))
		Expect(sessionCookie()).To(BeNil())

		status, body = call(http.MethodGet, "/auth/me", "")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body.Message).To(Equal("not logged in"))
	})

	It("rejects a second registration for the same email", func() {
		reg := `{"email":"a@b.com","password":"secret1","name":"A"}`
		status, _ := call(http.MethodPost, "/auth/register", reg)
		Expect(status).To(Equal(http.StatusOK))

		status, body := call(http.MethodPost, "/auth/register", reg)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body.Success).To(BeFalse())
		Expect(users.Len()).To(Equal(1))
	})

	It("logs in with the registered credentials and returns the same id", func() {
		_, registered := call(http.MethodPost, "/api/auth/register",
			`{"email":"shopper@example.com","password":"secret1","name":"Shopper"}`)
		client.Jar, _ = cookiejar.New(nil)

		status, body := call(http.MethodPost, "/api/auth/login",
			`{"email":"shopper@example.com","password":"secret1"}`)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.User.ID).To(Equal(registered.User.ID))
		Expect(body.Token).NotTo(BeEmpty())
	})

	It("does not re-check password length at login", func() {
		status, body := call(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"abc"}`)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body.Message).To(Equal("invalid credentials"))
	})

	It("treats an expired session as logged out", func() {
		status, _ := call(http.MethodPost, "/api/auth/register",
			`{"email":"a@b.com","password":"secret1","name":"A"}`)
		Expect(status).To(Equal(http.StatusOK))

		clock.Lock()
		now = now.Add(auth.TokenTTL + time.Minute)
		clock.Unlock()

		status, body := call(http.MethodGet, "/api/auth/me", "")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body.Message).To(Equal("token invalid or expired"))
	})

	It("keeps exactly one account under concurrent registration", func() {
		var wg sync.WaitGroup
		statuses := make(chan int, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				resp, err := http.Post(server.URL+"/api/auth/register", "application/json", //nolint:noctx // test
					strings.NewReader(`{"email":"race@b.com","password":"secret1","name":"R"}`))
				Expect(err).NotTo(HaveOccurred())
				_ = resp.Body.Close()
				statuses <- resp.StatusCode
			}()
		}
		wg.Wait()
		close(statuses)

		counts := map[int]int{}
		for s := range statuses {
			counts[s]++
		}
		Expect(counts).To(Equal(map[int]int{http.StatusOK: 1, http.StatusConflict: 9}))
		Expect(users.Len()).To(Equal(1))
	})
})
