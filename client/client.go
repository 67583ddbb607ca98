// groupmeet terminal client: signs in, joins groups via invite links,
// synchronizes the active group's message stream and schedules meetings.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"groupmeet/auth"
	"groupmeet/domain"
	"groupmeet/groups"
	"groupmeet/identity"
	"groupmeet/internal"
	"groupmeet/invite"
	"groupmeet/meetings"
	"groupmeet/moderation"
	"groupmeet/profiles"
	"groupmeet/realtime"
	"groupmeet/repositories"
	"groupmeet/retry"
	"groupmeet/runtime"
	"groupmeet/session"
	"groupmeet/stream"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// entryPath simulates the URL path the client was addressed with.
type entryPath struct {
	mu   sync.Mutex
	path string
}

func (e *entryPath) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

func (e *entryPath) Rewrite(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.path = path
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open local storage.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("opening storage: %w", err)
	}
	defer db.Close()

	// 3. Connect the push channel.
	channel, err := realtime.Connect(log, config.NatsURL, config.ClientName)
	if err != nil {
		return exitRuntime, err
	}
	defer channel.Close()

	// 4. Backend collaborators.
	groupRepo := repositories.NewGroupRepository(db, log)
	membershipRepo := repositories.NewMembershipRepository(db, log)
	messageRepo := repositories.NewMessageRepository(db, log, channel)
	profileRepo := repositories.NewProfileRepository(db, log)
	meetingRepo := repositories.NewMeetingRepository(db, log)
	userRepo := repositories.NewUserRepository(db, log)

	issuer := auth.NewTokenIssuer(config.TokenSecret, config.AuthTokenDuration)
	store := identity.NewCredentialStore(config.CredentialsFilepath)
	provider := identity.NewProvider(log, userRepo, profileRepo, issuer, store)

	// 5. Engine components.
	connectivity := retry.NewConnectivity()
	retrier := retry.NewRetrier(log, config.RetryMaxAttempts, config.RetryBaseDelay, channel.Probe(), connectivity)

	screener, err := moderation.NewScreener(log, loadBlacklist(config.BlacklistFilepath))
	if err != nil {
		return exitRuntime, err
	}

	path := &entryPath{path: config.EntryPath}
	sessions := session.NewManager(log, provider)
	invites := invite.NewResolver(log, groupRepo, membershipRepo, path, retrier)
	groupService := groups.NewGroupService(log, groupRepo, membershipRepo, userRepo, retrier)
	synchronizer := stream.NewSynchronizer(log, messageRepo, channel, screener, retrier)
	profileResolver := profiles.NewResolver(log, profileRepo, profiles.NewCache(), retrier)
	scheduler := meetings.NewScheduler(log, meetingRepo, messageRepo, retrier)

	engine := runtime.NewEngine(log, sessions, invites, groupService, synchronizer)
	hydration := runtime.NewHydrationWorker(log, synchronizer, profileResolver)

	if config.InspectPort != 0 {
		internal.StartInspector(db, config.InspectPort, func() map[string]any {
			return map[string]any{
				"Online": connectivity.Online(),
				"State":  synchronizer.State().String(),
				"Time":   time.Now().Format(time.RFC822),
			}
		})
		log.Info("Storage inspector listening", "port", config.InspectPort)
	}

	sup := runtime.NewSupervisor(log)
	go sup.Add(sessions, engine, hydration).Run(ctx)
	defer sup.Stop()

	// 6. Interactive loop.
	repl := &repl{
		ctx:        ctx,
		provider:   provider,
		sessions:   sessions,
		engine:     engine,
		groups:     groupService,
		stream:     synchronizer,
		profiles:   profileResolver,
		meetings:   scheduler,
		screener:   screener,
		connective: connectivity,
	}
	repl.loop()
	return exitOK, nil
}

// loadBlacklist reads one blocked word per line; a missing path means an
// empty blacklist.
func loadBlacklist(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		if word := strings.TrimSpace(line); word != "" {
			words = append(words, word)
		}
	}
	return words
}

type repl struct {
	ctx        context.Context
	provider   *identity.Provider
	sessions   *session.Manager
	engine     *runtime.Engine
	groups     groups.IGroupService
	stream     *stream.Synchronizer
	profiles   *profiles.Resolver
	meetings   *meetings.Scheduler
	screener   *moderation.Screener
	connective *retry.Connectivity

	active *domain.Group
}

func (r *repl) loop() {
	color.Cyanln("groupmeet — type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(r.prompt())
		if !scanner.Scan() {
			return
		}
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := r.dispatch(fields[0], fields[1:]); err != nil {
			color.Redln("error:", err)
		}
	}
}

func (r *repl) prompt() string {
	name := "anonymous"
	if sess, ok := r.sessions.Current(); ok {
		name = domain.FallbackDisplayName(sess.Email)
	}
	if r.active != nil {
		return fmt.Sprintf("%s@%s> ", name, r.active.Name)
	}
	return name + "> "
}

func (r *repl) dispatch(cmd string, args []string) error {
	switch cmd {
	case "help":
		r.printHelp()
		return nil
	case "signup":
		return r.signUp(args)
	case "signin":
		return r.signIn(args)
	case "signout":
		r.active = nil
		return r.provider.SignOut(r.ctx)
	case "groups":
		return r.listGroups()
	case "create":
		return r.createGroup(args)
	case "join":
		return r.join(args)
	case "enter":
		return r.enter(args)
	case "leave":
		return r.leave()
	case "invite":
		return r.inviteLink()
	case "members":
		return r.listMembers()
	case "messages":
		return r.printMessages()
	case "send":
		return r.send(args)
	case "meet":
		return r.scheduleMeeting(args)
	case "meetings":
		return r.listMeetings()
	case "status":
		r.printStatus()
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func (r *repl) printHelp() {
	fmt.Println(`  signup <email> <password>     create an account
  signin <email> <password>     open a session
  signout                       close the session
  groups                        list my groups
  create <maxMembers> <name...> create a group
  join <token>                  redeem an invite token
  enter <groupID>               activate a group
  leave                         leave the active group
  invite                        show the active group's invite link
  members                       list members of the active group
  messages                      print the synchronized stream
  send <text...>                send a message
  meet <inMinutes> <topic...>   schedule a meeting
  meetings                      list the active group's meetings
  status                        connectivity and stream state
  quit                          exit`)
}

func (r *repl) signUp(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: signup <email> <password>")
	}
	_, err := r.provider.SignUp(r.ctx, args[0], args[1])
	return err
}

func (r *repl) signIn(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: signin <email> <password>")
	}
	_, err := r.provider.SignIn(r.ctx, args[0], args[1])
	return err
}

func (r *repl) session() (domain.Session, error) {
	sess, ok := r.sessions.Current()
	if !ok {
		return domain.Session{}, fmt.Errorf("sign in first")
	}
	return sess, nil
}

func (r *repl) listGroups() error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	listed, err := r.groups.ListForUser(r.ctx, sess.UserID)
	if err != nil {
		return err
	}

	table := newTable([]string{"ID", "Name", "Topics", "Max", "Invite code"})
	for _, g := range listed {
		table.Append([]string{g.ID, g.Name, strings.Join(g.Topics, ","), strconv.Itoa(g.MaxMembers), g.InviteCode})
	}
	table.Render()
	return nil
}

func (r *repl) createGroup(args []string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: create <maxMembers> <name...>")
	}
	maxMembers, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("maxMembers must be a number: %w", err)
	}

	group, err := r.groups.Create(r.ctx, groups.CreateGroupCommand{
		CreatorID:  sess.UserID,
		Name:       strings.Join(args[1:], " "),
		MaxMembers: maxMembers,
	})
	if err != nil {
		return err
	}
	color.Greenln("created", group.ID, "invite link:", r.groups.InviteLink(group))
	return r.activate(group.ID)
}

func (r *repl) join(args []string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: join <token>")
	}
	// Engine-equivalent path for tokens typed at the prompt instead of
	// arriving on the entry path.
	groupID, err := r.engine.Join(r.ctx, args[0], sess)
	if err != nil {
		return err
	}
	return r.activate(groupID)
}

func (r *repl) enter(args []string) error {
	if _, err := r.session(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: enter <groupID>")
	}
	return r.activate(args[0])
}

func (r *repl) activate(groupID string) error {
	group, err := r.engine.Activate(r.ctx, groupID)
	if err != nil {
		return err
	}
	r.active = &group
	color.Greenln("synchronizing", group.Name)
	return nil
}

func (r *repl) leave() error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	if err := r.groups.Leave(r.ctx, r.active.ID, sess.UserID); err != nil {
		return err
	}
	r.engine.Deactivate()
	r.active = nil
	return nil
}

func (r *repl) inviteLink() error {
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	fmt.Println(r.groups.InviteLink(*r.active))
	return nil
}

func (r *repl) listMembers() error {
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	members, err := r.groups.Members(r.ctx, r.active.ID)
	if err != nil {
		return err
	}

	table := newTable([]string{"User", "Email", "Creator", "Joined"})
	for _, m := range members {
		table.Append([]string{
			m.UserID,
			m.Email,
			strconv.FormatBool(m.IsCreator),
			m.JoinedAt.Format(time.DateTime),
		})
	}
	table.Render()
	return nil
}

func (r *repl) printMessages() error {
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	for _, msg := range r.stream.Messages() {
		r.printMessage(msg)
	}
	return nil
}

func (r *repl) printMessage(msg domain.Message) {
	fmt.Println(r.renderMessage(msg))
}

// renderMessage formats one stream line. Text goes through the screener
// so words blacklisted after a message was stored still render masked.
func (r *repl) renderMessage(msg domain.Message) string {
	at := msg.CreatedAt.Format(time.TimeOnly)
	if msg.IsSystem() {
		return color.Yellow.Render(fmt.Sprintf("[%s] %s", at, msg.Text))
	}
	sender := color.Green.Render(r.profiles.DisplayName(msg.Sender))
	return fmt.Sprintf("[%s] %s: %s", at, sender, r.screener.Censor(msg.Text))
}

func (r *repl) send(args []string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: send <text...>")
	}
	return r.stream.Send(r.ctx, sess, strings.Join(args, " "))
}

func (r *repl) scheduleMeeting(args []string) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: meet <inMinutes> <topic...>")
	}
	inMinutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("inMinutes must be a number: %w", err)
	}

	meeting, err := r.meetings.Schedule(r.ctx, meetings.ScheduleCommand{
		GroupID:      r.active.ID,
		CreatedBy:    sess.UserID,
		Topic:        strings.Join(args[1:], " "),
		ScheduledFor: time.Now().Add(time.Duration(inMinutes) * time.Minute),
	})
	if err != nil {
		return err
	}
	color.Greenln("scheduled", meeting.Topic, "->", meeting.JoinLink)
	return nil
}

func (r *repl) listMeetings() error {
	if r.active == nil {
		return fmt.Errorf("no active group")
	}
	listed, err := r.meetings.ListForGroup(r.ctx, r.active.ID)
	if err != nil {
		return err
	}

	table := newTable([]string{"Topic", "When", "Link", "By"})
	for _, m := range listed {
		table.Append([]string{
			m.Topic,
			m.ScheduledFor.Local().Format(time.DateTime),
			m.JoinLink,
			r.profiles.DisplayName(m.CreatedBy),
		})
	}
	table.Render()
	return nil
}

func (r *repl) printStatus() {
	online := "online"
	if !r.connective.Online() {
		online = color.Red.Render("offline")
	}
	fmt.Printf("connectivity: %s, stream: %s", online, r.stream.State())
	if group := r.stream.ActiveGroup(); group != "" {
		fmt.Printf(", group: %s", group)
	}
	fmt.Println()
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
