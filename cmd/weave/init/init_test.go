package initcmder_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/docweave/weave/cmd/weave/init"
	"github.com/docweave/weave/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "weave-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .weave directory with a default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".weave"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Backend.Target).To(Equal("http://localhost:5000"))
		Expect(cfg.Storage.Provider).To(Equal("sqlite"))
		Expect(cfg.EventStream.Provider).To(Equal("nop"))
	})

	It("does not overwrite existing contents when already initialized", func() {
		weaveDir := filepath.Join(tmpDir, ".weave")
		Expect(os.MkdirAll(weaveDir, 0o755)).To(Succeed())

		configPath := filepath.Join(weaveDir, "config.toml")
		Expect(os.WriteFile(configPath, []byte("[chat]\nindex = \"manuals\"\n"), 0o644)).To(Succeed())

		Expect(execute()).To(Succeed())

		Expect(loadConfig(tmpDir).Chat.Index).To(Equal("manuals"))
	})

	Describe("--preset", func() {
		It("writes the team preset", func() {
			Expect(execute("--preset", "team")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Storage.Provider).To(Equal("postgres"))
			Expect(cfg.EventStream.Provider).To(Equal("kafka"))
			Expect(cfg.EventStream.Brokers).To(Equal("localhost:9092"))
		})

		It("overwrites the config when re-run with a different preset", func() {
			Expect(execute("--preset", "team")).To(Succeed())
			Expect(execute("--preset", "local")).To(Succeed())

			Expect(loadConfig(tmpDir).Storage.Provider).To(Equal("sqlite"))
		})

		It("rejects unknown preset names", func() {
			err := execute("--preset", "invalid")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown preset"))
		})

		It("fetches and writes a remote config.toml", func() {
			remote := `version = 0

[backend]
target = "https://docs.example.com"
restricted = false

[chat]
index = "handbook"
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, remote)
			}))
			defer server.Close()

			Expect(execute("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Backend.Target).To(Equal("https://docs.example.com"))
			Expect(cfg.Backend.Restricted).To(BeFalse())
			Expect(cfg.Chat.Index).To(Equal("handbook"))
		})

		It("returns an error for a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			err := execute("--preset", server.URL)
			Expect(err).To(MatchError(ContainSubstring("HTTP 404")))
		})

		It("returns an error for invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			err := execute("--preset", server.URL)
			Expect(err).To(MatchError(ContainSubstring("parsing")))
		})
	})
})

// loadConfig reads and parses the config.toml from the .weave directory
// within baseDir.
func loadConfig(baseDir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(baseDir, ".weave", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	ExpectWithOffset(1, toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}
