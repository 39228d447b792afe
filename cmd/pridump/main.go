// Command pridump opens a D-channel device and logs every Layer 2 and
// Layer 3 event the controller produces, the ISDN-PRI analog of
// libpri's pridump sample: a thin CLI wrapped around the library, no
// call control of its own.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/gopri/pri"
	"github.com/gopri/pri/pkg/dchannel"
	"github.com/gopri/pri/pkg/dialect"
	"github.com/gopri/pri/pkg/frame"
)

func main() {
	fd := flag.Int("fd", -1, "already-open D-channel device file descriptor")
	network := flag.Bool("network", false, "run as the NETWORK side instead of CPE")
	dialectName := flag.String("dialect", "national", "switch dialect: national, 4ess, ni2, dms100")
	profilePath := flag.String("profile", "", "optional ini file overriding the built-in dialect profile table")
	verbose := flag.Bool("v", false, "debug-level logging")
	flag.Parse()

	if *verbose {
		pri.SetDebugLevel(log.DebugLevel)
	}

	if *fd < 0 {
		log.Fatal("pridump: -fd is required")
	}

	sock, err := dchannel.OpenRawSocket(*fd)
	if err != nil {
		log.Fatalf("pridump: %v", err)
	}
	defer sock.Close()

	sw, ok := dialect.ByName(*dialectName)
	if !ok {
		log.Fatalf("pridump: unknown dialect %q", *dialectName)
	}
	profiles := dialect.Default()
	if *profilePath != "" {
		profiles, err = dialect.LoadProfiles(*profilePath)
		if err != nil {
			log.Fatalf("pridump: %v", err)
		}
	}

	role := frame.RoleCPE
	if *network {
		role = frame.RoleNetwork
	}

	ctrl := pri.NewController(role, sock, profiles[sw])
	ctrl.Start()

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	ctrl.Run(stop, func(ev pri.Event) {
		log.Infof("[PRIDUMP] %s callref=%d channel=%d cause=%d calling=%q called=%q",
			ev.Kind, ev.CallRef, ev.Channel, ev.Cause, ev.CallingNumber, ev.CalledNumber)
	})
}
