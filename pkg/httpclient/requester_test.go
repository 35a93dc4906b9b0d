// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient_test

import (
	"context"
	"net/http"
	"net/url"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/httpclient"
)

type echo struct {
	Value string `json:"value"`
}

var _ = Describe("Requester", func() {
	const apiURL = "http://backend.thermolink.test"

	var client *httpclient.Client

	BeforeEach(func() {
		client = httpclient.NewClient(apiURL, "secret-token", false, zap.NewNop().Sugar())
		gock.InterceptClient(client.HTTPClient())
	})

	AfterEach(func() {
		// Ensure that all gock mocks are turned off after each test, even the unmatched ones
		gock.OffAll()
	})

	It("should join the base URL and the endpoint with a single slash", func() {
		Expect(client.URL("api/place")).To(Equal(apiURL + "/api/place"))
		Expect(client.URL("/api/place")).To(Equal(apiURL + "/api/place"))
	})

	Context("GetRequest", func() {
		It("should send the session token as the jwt cookie and decode the body", func() {
			gock.New(apiURL).
				Get("/api/echo").
				MatchHeader("Cookie", "jwt=secret-token").
				MatchParam("q", "Pr").
				Reply(200).
				JSON(map[string]string{"value": "ok"})

			result, err, status := httpclient.GetRequest[echo](context.Background(), client, "api/echo", url.Values{"q": {"Pr"}})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(200))
			Expect(result).ToNot(BeNil())
			Expect(result.Value).To(Equal("ok"))
			Expect(gock.IsDone()).To(BeTrue())
		})

		It("should return a StatusError carrying the backend message for non 2xx responses", func() {
			gock.New(apiURL).
				Get("/api/echo").
				Reply(404).
				JSON(map[string]string{"error": "no diagram"})

			result, err, status := httpclient.GetRequest[echo](context.Background(), client, "api/echo", nil)
			Expect(result).To(BeNil())
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(httpclient.IsStatus(err, http.StatusNotFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("no diagram"))
		})

		It("should return a nil result for an empty body", func() {
			gock.New(apiURL).
				Get("/api/echo").
				Reply(204)

			result, err, status := httpclient.GetRequest[echo](context.Background(), client, "api/echo", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusNoContent))
			Expect(result).To(BeNil())
		})

		It("should fail on an unparsable body", func() {
			gock.New(apiURL).
				Get("/api/echo").
				Reply(200).
				BodyString("<html>")

			_, err, status := httpclient.GetRequest[echo](context.Background(), client, "api/echo", nil)
			Expect(err).To(HaveOccurred())
			Expect(status).To(Equal(200))
		})
	})

	Context("PostRequest", func() {
		It("should send the payload as JSON", func() {
			gock.New(apiURL).
				Post("/api/echo").
				MatchType("json").
				JSON(map[string]string{"value": "hello"}).
				Reply(200).
				JSON(map[string]string{"value": "hello"})

			payload := echo{Value: "hello"}
			result, err, status := httpclient.PostRequest[echo](context.Background(), client, "api/echo", &payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(200))
			Expect(result.Value).To(Equal("hello"))
		})

		It("should fail for server errors", func() {
			gock.New(apiURL).
				Post("/api/echo").
				Reply(500)

			payload := echo{Value: "hello"}
			_, err, status := httpclient.PostRequest[echo](context.Background(), client, "api/echo", &payload)
			Expect(err).To(HaveOccurred())
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(httpclient.IsStatus(err, http.StatusInternalServerError)).To(BeTrue())
		})
	})
})
