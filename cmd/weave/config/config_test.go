package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/docweave/weave/cmd/weave/config"
	"github.com/docweave/weave/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	load := func() *config.Config {
		cfger, err := config.NewConfiger("")
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "weave-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .weave dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".weave"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "backend.target", "https://docs.example.com")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, ".weave", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(load().Backend.Target).To(Equal("https://docs.example.com"))
		})

		It("keeps an explicit false", func() {
			Expect(run("set", "backend.restricted", "false")).To(Succeed())
			Expect(load().Backend.Restricted).To(BeFalse())
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "backend.target")).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			Expect(run("set")).To(HaveOccurred())
		})

		It("rejects invalid values", func() {
			Expect(run("set", "ui.theme", "neon")).To(HaveOccurred())
			Expect(run("set", "backend.timeout", "soon")).To(HaveOccurred())
			Expect(run("set", "storage.provider", "mongo")).To(HaveOccurred())
		})

		It("masks secret values in the output", func() {
			Expect(run("set", "storage.postgres_dsn", "postgres://u:hunter2@db/weave")).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("hunter2"))
			Expect(load().Storage.PostgresDSN).To(Equal("postgres://u:hunter2@db/weave"))
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "chat.index", "manuals")).To(Succeed())

			out.Reset()
			Expect(run("get", "chat.index")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("manuals"))
		})

		It("runs without error for unset key", func() {
			Expect(run("get", "chat.index")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("runs without error when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("backend.target"))
		})

		It("runs without error when config has values", func() {
			Expect(run("set", "ui.theme", "dark")).To(Succeed())

			out.Reset()
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"dark"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
