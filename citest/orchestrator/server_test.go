package orchestrator_test

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
	"golang.org/x/sys/unix"

	"github.com/opencode-ai/tails/citest/testutil"
)

// processGone reports whether pid no longer exists.
func processGone(pid int) func() bool {
	return func() bool {
		return unix.Kill(pid, 0) == unix.ESRCH
	}
}

var _ = Describe("Server Sessions", func() {
	var (
		project *testutil.Project
		port    int
	)

	BeforeEach(func() {
		var err error
		project, err = testutil.NewProject()
		Expect(err).NotTo(HaveOccurred())
		port, err = testutil.FindAvailablePort()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if project != nil {
			project.Cleanup()
		}
	})

	start := func(args ...string) *gexec.Session {
		base := []string{"--print-logs", "demo", "server", "--host", "127.0.0.1", "--port", strconv.Itoa(port)}
		session, err := project.Start(binary, append(base, args...)...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { session.Kill().Wait(10 * time.Second) })
		Eventually(func() bool { return testutil.Healthy(port) }, 20*time.Second, 50*time.Millisecond).Should(BeTrue())
		return session
	}

	dependency := "sh -c 'echo $$ > dep.pid; exec sleep 300'"

	Describe("Shutdown", func() {
		It("should release the port on interrupt", func() {
			session := start()
			session.Interrupt()
			Eventually(session, 20*time.Second).Should(gexec.Exit(0))
			Expect(testutil.PortFree(port)).To(BeTrue())
		})

		It("should terminate every subordinate on SIGTERM", func() {
			session := start("--worker", "clock", "--dependency", dependency)

			var pid int
			Eventually(func() error {
				var err error
				pid, err = project.ReadPid("dep.pid")
				return err
			}, 10*time.Second, 50*time.Millisecond).Should(Succeed())

			session.Terminate()
			Eventually(session, 20*time.Second).Should(gexec.Exit(0))
			Eventually(processGone(pid), 5*time.Second, 50*time.Millisecond).Should(BeTrue())
			Expect(testutil.PortFree(port)).To(BeTrue())
		})

		It("should take children down when the orchestrator is killed", func() {
			if runtime.GOOS != "linux" {
				Skip("parent death signal is linux only")
			}
			session := start("--dependency", dependency)

			var pid int
			Eventually(func() error {
				var err error
				pid, err = project.ReadPid("dep.pid")
				return err
			}, 10*time.Second, 50*time.Millisecond).Should(Succeed())

			session.Kill()
			Eventually(session).Should(gexec.Exit())
			Eventually(processGone(pid), 10*time.Second, 50*time.Millisecond).Should(BeTrue())
			Eventually(func() bool { return testutil.PortFree(port) }, 10*time.Second, 50*time.Millisecond).Should(BeTrue())
		})
	})

	Describe("Startup Validation", func() {
		It("should refuse an unknown worker before starting anything", func() {
			session, err := project.Start(binary, "demo", "server", "--port", strconv.Itoa(port), "--worker", "indexer", "--dependency", dependency)
			Expect(err).NotTo(HaveOccurred())
			Eventually(session, 10*time.Second).Should(gexec.Exit(2))
			_, err = project.ReadPid("dep.pid")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Reload", func() {
		It("should restart the server when a source file changes", func() {
			session := start("--watch")

			Expect(project.WriteFile("handlers.go", "package demo\n")).To(Succeed())
			Eventually(session.Out, 10*time.Second).Should(gbytes.Say("handlers.go changed, reloading"))
			Eventually(session.Err, 10*time.Second).Should(gbytes.Say("reloading server"))
			Eventually(func() bool { return testutil.Healthy(port) }, 20*time.Second, 50*time.Millisecond).Should(BeTrue())
		})

		It("should settle on one healthy server after a burst of changes", func() {
			session := start("--watch")

			for i := range 10 {
				Expect(project.WriteFile(fmt.Sprintf("gen_%d.go", i), "package demo\n")).To(Succeed())
			}
			Eventually(session.Out, 10*time.Second).Should(gbytes.Say("changed, reloading"))
			Eventually(func() bool { return testutil.Healthy(port) }, 20*time.Second, 50*time.Millisecond).Should(BeTrue())
			Consistently(func() bool { return testutil.Healthy(port) }, time.Second, 100*time.Millisecond).Should(BeTrue())
			Expect(session.Err.Contents()).NotTo(ContainSubstring("reload failed"))
			Expect(session).NotTo(gexec.Exit())
		})

		It("should ignore changes outside the pattern", func() {
			session := start("--watch")

			Expect(project.WriteFile("README.md", "# demo\n")).To(Succeed())
			Consistently(session.Out, time.Second).ShouldNot(gbytes.Say("changed, reloading"))
		})
	})
})
