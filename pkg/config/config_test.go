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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JustDevDev/thermolink/pkg/config"
	"github.com/JustDevDev/thermolink/pkg/constants"
)

var _ = Describe("Config", func() {
	setEnv := func(key, value string) {
		GinkgoT().Setenv(key, value)
	}

	BeforeEach(func() {
		setEnv("API_URL", "https://api.thermolink.test")
		setEnv("WS_URL", "wss://api.thermolink.test/ws")
	})

	It("falls back to the defaults", func() {
		cfg, err := config.Load()
		Expect(err).ToNot(HaveOccurred())

		Expect(cfg.HTTPAddr).To(Equal(":8080"))
		Expect(cfg.WSAutoReconnect).To(BeTrue())
		Expect(cfg.WSMaxReconnectAttempts).To(Equal(constants.DefaultMaxReconnectAttempts))
		Expect(cfg.Version).To(Equal(constants.DefaultAppVersion))
	})

	It("requires the backend URLs", func() {
		setEnv("API_URL", "")

		_, err := config.Load()
		Expect(err).To(MatchError(ContainSubstring("APIURL")))
	})

	It("rejects malformed numbers", func() {
		setEnv("WS_MAX_RECONNECT_ATTEMPTS", "five")

		_, err := config.Load()
		Expect(err).To(MatchError(ContainSubstring("WS_MAX_RECONNECT_ATTEMPTS")))
	})

	It("rejects a malformed email", func() {
		setEnv("USER_EMAIL", "operator")

		_, err := config.Load()
		Expect(err).To(MatchError(ContainSubstring("UserEmail")))
	})

	It("overlays the config file and lets the environment win", func() {
		path := filepath.Join(GinkgoT().TempDir(), "thermolink.yaml")
		Expect(os.WriteFile(path, []byte(
			"httpAddr: \":9090\"\n"+
				"wsMaxReconnectAttempts: 2\n"+
				"userEmail: file@thermolink.test\n",
		), 0o600)).To(Succeed())
		setEnv("CONFIG_FILE", path)
		setEnv("USER_EMAIL", "env@thermolink.test")

		cfg, err := config.Load()
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.HTTPAddr).To(Equal(":9090"))
		Expect(cfg.WSMaxReconnectAttempts).To(Equal(2))
		Expect(cfg.UserEmail).To(Equal("env@thermolink.test"))
	})

	It("fails on an unreadable config file", func() {
		setEnv("CONFIG_FILE", filepath.Join(GinkgoT().TempDir(), "missing.yaml"))

		_, err := config.Load()
		Expect(err).To(HaveOccurred())
	})

	It("maps onto the session settings", func() {
		setEnv("WS_RECONNECT_INTERVAL_MS", "250")
		setEnv("PLACE_DEBOUNCE_MS", "100")
		setEnv("WS_AUTO_RECONNECT", "false")

		cfg, err := config.Load()
		Expect(err).ToNot(HaveOccurred())

		s := cfg.Session()
		Expect(s.APIURL).To(Equal("https://api.thermolink.test"))
		Expect(s.Channel.URL).To(Equal("wss://api.thermolink.test/ws"))
		Expect(s.Channel.AutoReconnect).To(BeFalse())
		Expect(s.Channel.ReconnectInterval).To(Equal(250 * time.Millisecond))
		Expect(s.Location.Debounce).To(Equal(100 * time.Millisecond))
		Expect(s.Location.MinQueryLength).To(Equal(constants.PlaceMinQueryLength))
	})
})
