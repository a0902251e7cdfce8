package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"MESH-SAL/pkg/meshsal"
	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/sal"
)

// settleRounds bounds how often the medium is run after a command so that
// replies triggered by the command are delivered before the next prompt.
const settleRounds = 4

type entry struct {
	node string
	sock *sal.Socket
}

// Repl is an interactive shell over a simulated medium. Each command acts on
// the current node; sockets are numbered in creation order.
type Repl struct {
	medium  *meshstack.Medium
	nodes   map[string]*meshstack.Node
	meshes  map[string]*meshsal.Mesh
	current string
	sockets []*entry
	out     io.Writer
}

func New(medium *meshstack.Medium, local string, out io.Writer) (*Repl, error) {
	r := &Repl{
		medium: medium,
		nodes:  make(map[string]*meshstack.Node),
		meshes: make(map[string]*meshsal.Mesh),
		out:    out,
	}
	for _, n := range medium.Nodes() {
		r.nodes[n.Name] = n
		r.meshes[n.Name] = meshsal.NewMesh(n)
	}
	mesh, ok := r.meshes[local]
	if !ok {
		return nil, errors.Errorf("no node %q on the medium", local)
	}
	if err := mesh.Init(); err != nil {
		return nil, errors.Wrap(err, "register adaptor")
	}
	r.current = local
	return r, nil
}

// Start reads commands from in until EOF or "exit".
func (r *Repl) Start(in io.Reader) {
	reader := bufio.NewScanner(in)
	for {
		fmt.Fprintf(r.out, "%s> ", r.current)
		if !reader.Scan() {
			break
		}
		input := strings.TrimSpace(reader.Text())
		if input == "exit" {
			break
		}
		if input == "" {
			continue
		}
		if err := r.Execute(input); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

// Execute runs one command line.
func (r *Repl) Execute(input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	args := parts[1:]

	var err error
	switch parts[0] {
	case "ln":
		r.listNodes()
	case "ls":
		r.listSockets()
	case "use":
		err = r.use(args)
	case "up":
		err = r.up()
	case "down":
		err = r.mesh().Disconnect()
	case "ip":
		err = r.ip()
	case "open":
		err = r.open(args)
	case "bind":
		err = r.bind(args)
	case "connect":
		err = r.connect(args)
	case "send":
		err = r.send(args)
	case "sendto":
		err = r.sendTo(args)
	case "recv":
		err = r.recv(args)
	case "resolve":
		err = r.resolve(args)
	case "close":
		err = r.close(args)
	case "destroy":
		err = r.destroy(args)
	case "closeall":
		err = r.closeAll()
	case "run":
		r.medium.Run()
		return nil
	default:
		return errors.Errorf("unknown command %q", parts[0])
	}
	r.settle()
	return err
}

func (r *Repl) settle() {
	for i := 0; i < settleRounds; i++ {
		r.medium.Run()
	}
}

func (r *Repl) mesh() *meshsal.Mesh {
	return r.meshes[r.current]
}

func (r *Repl) api() sal.API {
	return r.mesh().Adaptor()
}

func (r *Repl) listNodes() {
	w := tabwriter.NewWriter(r.out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "Name\tAddr\tRole\tState")
	for _, n := range r.medium.Nodes() {
		state := "down"
		if n.Up() {
			state = "up"
		}
		name := n.Name
		if name == r.current {
			name += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, n.Address(), n.Role(), state)
	}
	w.Flush()
}

func (r *Repl) listSockets() {
	w := tabwriter.NewWriter(r.out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "SID\tNode\tType\tConnected\tBound\tQueued")
	for i, e := range r.sockets {
		if e == nil {
			continue
		}
		api := r.meshes[e.node].Adaptor()
		queued := "no"
		if e.sock.RxBufChain != nil {
			queued = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%s\n", i, e.node, e.sock.Family, api.IsConnected(e.sock), api.IsBound(e.sock), queued)
	}
	w.Flush()

	w = tabwriter.NewWriter(r.out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tProto\tPort\tState\tRemote\tPending")
	for _, info := range r.nodes[r.current].Sockets() {
		proto := "udp"
		if info.Proto == meshstack.ProtocolTCP {
			proto = "tcp"
		}
		remote := "-"
		if len(info.Remote.Addr) != 0 {
			remote = info.Remote.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\n", info.ID, proto, info.Port, info.State, remote, info.Pending)
	}
	w.Flush()
}

func (r *Repl) use(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use <node>")
	}
	if _, ok := r.meshes[args[0]]; !ok {
		return errors.Errorf("no node %q", args[0])
	}
	r.current = args[0]
	return nil
}

func (r *Repl) up() error {
	name := r.current
	return r.mesh().Connect(func() {
		fmt.Fprintf(r.out, "%s: network ready\n", name)
	})
}

func (r *Repl) ip() error {
	addr, err := r.mesh().IPAddress()
	if err != nil {
		return err
	}
	router, err := r.mesh().RouterIPAddress()
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "address %s, border router %s\n", addr, router)
	return nil
}

func (r *Repl) handler(sid int) sal.Handler {
	return func(e *sal.Event) {
		switch e.Kind {
		case sal.EventTxDone:
			fmt.Fprintf(r.out, "[%d] %s %d bytes\n", sid, e.Kind, e.SentBytes)
		case sal.EventTxError:
			fmt.Fprintf(r.out, "[%d] %s %s\n", sid, e.Kind, meshstack.EventType(e.NativeCode))
		case sal.EventDNS:
			fmt.Fprintf(r.out, "[%d] %s %s -> %s\n", sid, e.Kind, e.Domain, e.Addr)
		default:
			fmt.Fprintf(r.out, "[%d] %s\n", sid, e.Kind)
		}
	}
}

func (r *Repl) open(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <udp|tcp>")
	}
	var pf sal.ProtoFamily
	switch args[0] {
	case "udp":
		pf = sal.SocketDgram
	case "tcp":
		pf = sal.SocketStream
	default:
		return errors.Errorf("unknown socket type %q", args[0])
	}
	sid := len(r.sockets)
	s := &sal.Socket{}
	if err := r.api().Create(s, sal.AFInet6, pf, r.handler(sid)); err != nil {
		return err
	}
	r.sockets = append(r.sockets, &entry{node: r.current, sock: s})
	fmt.Fprintf(r.out, "socket %d\n", sid)
	return nil
}

func (r *Repl) socketArg(arg string) (*entry, sal.API, error) {
	sid, err := strconv.Atoi(arg)
	if err != nil || sid < 0 || sid >= len(r.sockets) || r.sockets[sid] == nil {
		return nil, nil, errors.Errorf("no socket %q", arg)
	}
	e := r.sockets[sid]
	return e, r.meshes[e.node].Adaptor(), nil
}

func parsePort(arg string) (uint16, error) {
	port, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, errors.Errorf("bad port %q", arg)
	}
	return uint16(port), nil
}

func (r *Repl) addrArg(api sal.API, s *sal.Socket, arg string) (*sal.Addr, error) {
	addr := &sal.Addr{}
	if err := api.Str2Addr(s, addr, arg); err != nil {
		return nil, err
	}
	return addr, nil
}

func (r *Repl) bind(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: bind <sid> <port>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	unspec, err := r.addrArg(api, e.sock, "::")
	if err != nil {
		return err
	}
	return api.Bind(e.sock, unspec, port)
}

func (r *Repl) connect(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: connect <sid> <addr> <port>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	addr, err := r.addrArg(api, e.sock, args[1])
	if err != nil {
		return err
	}
	port, err := parsePort(args[2])
	if err != nil {
		return err
	}
	return api.Connect(e.sock, addr, port)
}

func (r *Repl) send(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: send <sid> <message>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	return api.Send(e.sock, []byte(strings.Join(args[1:], " ")))
}

func (r *Repl) sendTo(args []string) error {
	if len(args) < 4 {
		return errors.New("usage: sendto <sid> <addr> <port> <message>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	addr, err := r.addrArg(api, e.sock, args[1])
	if err != nil {
		return err
	}
	port, err := parsePort(args[2])
	if err != nil {
		return err
	}
	return api.SendTo(e.sock, []byte(strings.Join(args[3:], " ")), addr, port)
}

func (r *Repl) recv(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: recv <sid> <numbytes>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(args[1])
	if err != nil || size < 0 {
		return errors.Errorf("bad length %q", args[1])
	}
	buf := make([]byte, size)

	if e.sock.Family == sal.SocketStream {
		n, err := api.Recv(e.sock, buf)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "read %d bytes: %s\n", n, buf[:n])
		return nil
	}
	n, from, port, err := api.RecvFrom(e.sock, buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "read %d bytes from [%s]:%d: %s\n", n, from, port, buf[:n])
	return nil
}

func (r *Repl) resolve(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: resolve <sid> <name>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	return api.Resolve(e.sock, args[1])
}

func (r *Repl) close(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: close <sid>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	return api.Close(e.sock)
}

func (r *Repl) destroy(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: destroy <sid>")
	}
	e, api, err := r.socketArg(args[0])
	if err != nil {
		return err
	}
	sid, _ := strconv.Atoi(args[0])
	r.sockets[sid] = nil
	return api.Destroy(e.sock)
}

// closeAll destroys every socket of the current node.
func (r *Repl) closeAll() error {
	var err error
	for sid, e := range r.sockets {
		if e == nil || e.node != r.current {
			continue
		}
		r.sockets[sid] = nil
		err = multierr.Append(err, r.api().Destroy(e.sock))
	}
	return err
}

// Close tears down every node's sockets and leaves the mesh.
func (r *Repl) Close() error {
	var err error
	for name, mesh := range r.meshes {
		if cerr := mesh.Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrap(cerr, name))
		}
	}
	r.sockets = nil
	return err
}
