package orchestrator_test

import (
	"fmt"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"

	"github.com/opencode-ai/tails/citest/testutil"
)

var _ = Describe("One-shot Commands", func() {
	var project *testutil.Project

	BeforeEach(func() {
		var err error
		project, err = testutil.NewProject()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if project != nil {
			project.Cleanup()
		}
	})

	run := func(args ...string) *gexec.Session {
		session, err := project.Start(binary, args...)
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	Describe("Argument Handling", func() {
		It("should print help without arguments", func() {
			session := run()
			Eventually(session).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("Commands:"))
		})

		It("should exit 2 on an unknown command", func() {
			session := run("demo", "deploy")
			Eventually(session).Should(gexec.Exit(2))
			Expect(session.Err).To(gbytes.Say(`unknown command "deploy"`))
		})

		It("should suggest a close application name", func() {
			session := run("dmeo", "migrate")
			Eventually(session).Should(gexec.Exit(2))
			Expect(session.Err).To(gbytes.Say(`did you mean "demo"`))
		})

		It("should reject flags before the command", func() {
			session := run("demo", "--port", "1", "server")
			Eventually(session).Should(gexec.Exit(2))
		})
	})

	Describe("Migrations", func() {
		It("should plan, apply and then report no changes", func() {
			session := run("demo", "migrate", "--dry-run")
			Eventually(session).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("CREATE TABLE posts"))
			Expect(session.Out).To(gbytes.Say("pending"))

			session = run("demo", "migrate")
			Eventually(session).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("applied"))

			session = run("demo", "migrate", "--dry-run")
			Eventually(session).Should(gexec.Exit(0))
			Expect(string(session.Out.Contents())).To(Equal("Schema is up to date.\n"))
		})

		It("should rebuild the schema on reset", func() {
			Eventually(run("demo", "migrate")).Should(gexec.Exit(0))

			session := run("demo", "reset")
			Eventually(session).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("DROP TABLE posts;"))
			Expect(session.Out).To(gbytes.Say("applied"))
		})
	})

	Describe("Build", func() {
		It("should do nothing without a bundler config", func() {
			Eventually(run("demo", "build")).Should(gexec.Exit(0))
		})

		It("should propagate the bundler's exit status", func() {
			Expect(project.WriteFile("tails.json", `{"bundler": {"command": "sh -c 'exit 5'"}}`)).To(Succeed())
			Eventually(run("demo", "build")).Should(gexec.Exit(5))
		})
	})

	Describe("Configuration", func() {
		It("should fail on an unreadable config file", func() {
			Expect(project.WriteFile("tails.jsonc", `{"commands": `)).To(Succeed())
			session := run("demo", "migrate")
			Eventually(session).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("tails.jsonc"))
		})

		It("should take command defaults from the config file", func() {
			port, err := testutil.FindAvailablePort()
			Expect(err).NotTo(HaveOccurred())
			Expect(project.WriteFile("tails.yaml", fmt.Sprintf("commands:\n  server:\n    host: 127.0.0.1\n    port: %d\n", port))).To(Succeed())

			session := run("demo", "server")
			Eventually(func() bool { return testutil.Healthy(port) }, 20*time.Second, 50*time.Millisecond).Should(BeTrue())
			Expect(session.Out).To(gbytes.Say("Running demo on 127.0.0.1:" + strconv.Itoa(port)))

			session.Interrupt()
			Eventually(session, 20*time.Second).Should(gexec.Exit(0))
		})
	})
})
