package api

import (
	"context"
	"errors"

	"carrental/internal/models"
	"carrental/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	FleetServiceName          = "carrental.fleet.v1.FleetService"
	fleetListCarsMethod       = "/" + FleetServiceName + "/ListCars"
	fleetCheckAvailabilityRPC = "/" + FleetServiceName + "/CheckAvailability"
)

// FleetServer is the read-only fleet API offered to internal clients.
// Messages are google.protobuf.Struct so no generated code is needed.
type FleetServer interface {
	ListCars(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var fleetServiceDesc = grpc.ServiceDesc{
	ServiceName: FleetServiceName,
	HandlerType: (*FleetServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCars", Handler: listCarsHandler},
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carrental/fleet/v1/fleet.proto",
}

func RegisterFleetServer(s grpc.ServiceRegistrar, srv FleetServer) {
	s.RegisterService(&fleetServiceDesc, srv)
}

func listCarsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetServer).ListCars(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fleetListCarsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FleetServer).ListCars(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetServer).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fleetCheckAvailabilityRPC}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FleetServer).CheckAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FleetClient calls FleetService over an existing connection.
type FleetClient struct {
	cc grpc.ClientConnInterface
}

func NewFleetClient(cc grpc.ClientConnInterface) *FleetClient {
	return &FleetClient{cc: cc}
}

func (c *FleetClient) ListCars(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fleetListCarsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetClient) CheckAvailability(ctx context.Context, carID, startDate, endDate string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"car_id":     carID,
		"start_date": startDate,
		"end_date":   endDate,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fleetCheckAvailabilityRPC, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FleetService implements FleetServer on top of the car service.
type FleetService struct {
	cars *service.CarService
}

func NewFleetService(cars *service.CarService) *FleetService {
	return &FleetService{cars: cars}
}

func (s *FleetService) ListCars(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cars, err := s.cars.ListCars(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	list := make([]any, 0, len(cars))
	for _, c := range cars {
		list = append(list, carFields(c))
	}
	return structpb.NewStruct(map[string]any{"cars": list})
}

func (s *FleetService) CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	carID := fields["car_id"].GetStringValue()
	if carID == "" {
		return nil, status.Error(codes.InvalidArgument, "car_id is required")
	}
	start, err := models.ParseDate(fields["start_date"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start_date: "+err.Error())
	}
	end, err := models.ParseDate(fields["end_date"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "end_date: "+err.Error())
	}

	availability, err := s.cars.CheckAvailability(ctx, carID, start, end)
	if err != nil {
		return nil, grpcError(err)
	}

	conflicts := make([]any, 0, len(availability.Conflicts))
	for _, b := range availability.Conflicts {
		conflicts = append(conflicts, map[string]any{
			"booking_id":    b.ID,
			"booking_uid":   b.BookingUID,
			"start_date":    b.StartDate.String(),
			"end_date":      b.EndDate.String(),
			"customer_name": b.CustomerName,
		})
	}
	return structpb.NewStruct(map[string]any{
		"car_id":     carID,
		"start_date": start.String(),
		"end_date":   end.String(),
		"available":  availability.Available,
		"conflicts":  conflicts,
	})
}

func carFields(c *models.Car) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"brand":      c.Brand,
		"model":      c.Model,
		"year":       c.Year,
		"color":      c.Color,
		"daily_rate": c.DailyRate,
		"reg_no":     c.RegNo,
	}
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, service.ErrCarNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidDateRange):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
