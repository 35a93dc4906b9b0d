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

package location_test

import (
	"errors"
	"sync"
	"time"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/httpclient"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/providers/location"
)

const apiURL = "http://backend.thermolink.test"

type fakeWriter struct {
	mu     sync.Mutex
	places map[string]models.Place
	err    error
}

func (w *fakeWriter) UpdateNodeLocation(id string, place *models.Place) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.places[id] = *place

	return nil
}

type resultLog struct {
	mu      sync.Mutex
	results []location.Result
}

func (l *resultLog) add(r location.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *resultLog) all() []location.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]location.Result(nil), l.results...)
}

var _ = Describe("Resolver", func() {
	var (
		writer   *fakeWriter
		results  *resultLog
		resolver *location.Resolver
	)

	BeforeEach(func() {
		client := httpclient.NewClient(apiURL, "", false, zap.NewNop().Sugar())
		gock.InterceptClient(client.HTTPClient())

		writer = &fakeWriter{places: map[string]models.Place{}}
		results = &resultLog{}
		resolver = location.NewResolver(client, writer, location.Config{
			MinQueryLength: 2,
			Debounce:       30 * time.Millisecond,
			CacheTTL:       time.Minute,
		}, results.add, zap.NewNop().Sugar())
	})

	AfterEach(func() {
		resolver.Close()
		gock.OffAll()
	})

	It("should not look up queries shorter than two characters", func() {
		resolver.Search("s1", "P")

		Expect(results.all()).To(HaveLen(1))
		result, pending := resolver.Suggestions("s1")
		Expect(pending).To(BeFalse())
		Expect(result.Places).To(BeEmpty())
	})

	It("should debounce keystrokes into a single lookup and map the suggestions", func() {
		gock.New(apiURL).
			Get("/api/place").
			MatchParam("place", "^Pra$").
			Times(1).
			Reply(200).
			JSON([]models.PlaceSuggestion{{ID: "1", Place: "Prague"}, {ID: "2", Place: "Prachatice"}})

		resolver.Search("s1", "Pr")
		resolver.Search("s1", "Pra")

		Eventually(func() []location.Result { return results.all() }).Should(HaveLen(1))
		Consistently(func() []location.Result { return results.all() }, 100*time.Millisecond).Should(HaveLen(1))

		result, pending := resolver.Suggestions("s1")
		Expect(pending).To(BeFalse())
		Expect(result.Query).To(Equal("Pra"))
		Expect(result.Places).To(Equal([]models.Place{{ID: "1", City: "Prague"}, {ID: "2", City: "Prachatice"}}))
		Expect(gock.IsDone()).To(BeTrue())
	})

	It("should keep only the result of the latest query", func() {
		gock.New(apiURL).
			Get("/api/place").
			MatchParam("place", "^Br$").
			Reply(200).
			Delay(300 * time.Millisecond).
			JSON([]models.PlaceSuggestion{{ID: "1", Place: "Bratislava"}})
		gock.New(apiURL).
			Get("/api/place").
			MatchParam("place", "^Brno$").
			Reply(200).
			JSON([]models.PlaceSuggestion{{ID: "2", Place: "Brno"}})

		resolver.Search("s1", "Br")
		time.Sleep(100 * time.Millisecond)
		resolver.Search("s1", "Brno")

		Eventually(func() string {
			result, _ := resolver.Suggestions("s1")

			return result.Query
		}).Should(Equal("Brno"))

		// let the slow answer arrive
		time.Sleep(400 * time.Millisecond)
		Expect(gock.IsDone()).To(BeTrue())

		result, _ := resolver.Suggestions("s1")
		Expect(result.Places).To(Equal([]models.Place{{ID: "2", City: "Brno"}}))
		for _, r := range results.all() {
			Expect(r.Query).To(Equal("Brno"))
		}
	})

	It("should answer repeated queries from the cache", func() {
		gock.New(apiURL).
			Get("/api/place").
			MatchParam("place", "^Ostrava$").
			Times(1).
			Reply(200).
			JSON([]models.PlaceSuggestion{{ID: "7", Place: "Ostrava"}})

		resolver.Search("s1", "Ostrava")
		Eventually(func() []location.Result { return results.all() }).Should(HaveLen(1))

		resolver.Search("s2", "ostrava")
		Eventually(func() []location.Result { return results.all() }).Should(HaveLen(2))

		second, _ := resolver.Suggestions("s2")
		Expect(second.Error).To(BeEmpty())
		Expect(second.Places).To(Equal([]models.Place{{ID: "7", City: "Ostrava"}}))
	})

	It("should publish lookup failures with an empty list", func() {
		gock.New(apiURL).Get("/api/place").Reply(502)

		resolver.Search("s1", "Plzen")
		Eventually(func() []location.Result { return results.all() }).Should(HaveLen(1))

		result, _ := resolver.Suggestions("s1")
		Expect(result.Error).ToNot(BeEmpty())
		Expect(result.Places).To(BeEmpty())
	})

	It("should write a selection through the store", func() {
		Expect(resolver.Select("s1", models.Place{ID: "1", City: "Prague"})).To(Succeed())
		Expect(writer.places).To(HaveKeyWithValue("s1", models.Place{ID: "1", City: "Prague"}))
	})

	It("should surface the store's refusal of a selection", func() {
		writer.err = errors.New("diagram is not in edit mode")
		Expect(resolver.Select("s1", models.Place{ID: "1", City: "Prague"})).ToNot(Succeed())
	})

	It("should drop pending lookups of a forgotten node", func() {
		resolver.Search("s1", "Liberec")
		resolver.Forget("s1")

		Consistently(func() []location.Result { return results.all() }, 100*time.Millisecond).Should(BeEmpty())
	})
})
