// Package rpc serves admin calls over net/rpc.
package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/services"
)

const callTimeout = 5 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr. Services are registered with Register before
// Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   rpc.NewServer(),
	}, nil
}

func (s *Server) Addr() string {
	return s.address
}

// Register exposes rcvr's methods under name.
func (s *Server) Register(name string, rcvr interface{}) error {
	return s.server.RegisterName(name, rcvr)
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// CatalogService exposes the role catalog to operators.
type CatalogService struct {
	catalog *services.CatalogService
}

func NewCatalogService(catalog *services.CatalogService) *CatalogService {
	return &CatalogService{catalog: catalog}
}

type RoleInfo struct {
	ID             uint
	Name           string
	Description    string
	WinPoints      int
	LosePoints     int
	IsInvestigator bool
	IsEvader       bool
}

func roleInfo(r models.Role) RoleInfo {
	return RoleInfo{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		WinPoints:      r.WinPoints,
		LosePoints:     r.LosePoints,
		IsInvestigator: r.IsInvestigator,
		IsEvader:       r.IsEvader,
	}
}

// ListRolesArgs narrows the listing to investigator and evader roles when
// SpecialOnly is set.
type ListRolesArgs struct {
	SpecialOnly bool
}

type ListRolesReply struct {
	Roles []RoleInfo
}

// ListRoles follows the net/rpc signature: exported method, exported
// arguments, pointer reply, error result.
func (cs *CatalogService) ListRoles(args *ListRolesArgs, reply *ListRolesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	roles, err := cs.catalog.ListRoles(ctx)
	if err != nil {
		return err
	}
	reply.Roles = make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		if args.SpecialOnly && r.Side() == models.SideNeutral {
			continue
		}
		reply.Roles = append(reply.Roles, roleInfo(r))
	}
	return nil
}

// UpdateRoleArgs leaves nil fields unchanged.
type UpdateRoleArgs struct {
	ID          uint
	Name        *string
	Description *string
	WinPoints   *int
	LosePoints  *int
}

type UpdateRoleReply struct {
	Role RoleInfo
}

func (cs *CatalogService) UpdateRole(args *UpdateRoleArgs, reply *UpdateRoleReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	role, err := cs.catalog.UpdateRole(ctx, args.ID, services.RoleUpdate{
		Name:        args.Name,
		Description: args.Description,
		WinPoints:   args.WinPoints,
		LosePoints:  args.LosePoints,
	})
	if err != nil {
		return err
	}
	logger.Log.Infof("Role %d updated over RPC", role.ID)
	reply.Role = roleInfo(*role)
	return nil
}
