package cef

import "cef-relay/internal/fields"

// Placement writes one canonical field under a CEF extension key.
type Placement struct {
	Extension string
	Source    fields.Key
}

// Layout is the ordered extension section of an encoded record. A source
// may be placed under more than one extension key.
type Layout []Placement

// Extension keys the severity cascade reads back when re-scoring CEF.
const (
	ExtOutcome          = "outcome"
	ExtEventStatus      = "PanOSEventStatus"
	ExtQuarantineReason = "PanOSQuarantineReason"
	ExtConnectionError  = "PanOSConnectionError"
	ExtConnectionErrID  = "PanOSConnectionErrorID"
)

// PanOSLayout is the PAN-OS 10.0+ GlobalProtect CEF mapping.
var PanOSLayout = Layout{
	// Standard CEF dictionary
	{"rt", fields.ReceiveTime},
	{"start", fields.TimeGenerated},
	{"src", fields.PublicIP},
	{"c6a2", fields.PublicIPv6},
	{"shost", fields.MachineName},
	{"suser", fields.SourceUser},
	{"sntdom", fields.SourceUserDomain},
	{"suid", fields.SourceUserUUID},
	{"duser", fields.DestUser},
	{"dntdom", fields.DestUserDomain},
	{"duid", fields.DestUserUUID},
	{ExtOutcome, fields.Status},
	{"sourceServiceName", fields.LogSource},
	{"deviceExternalID", fields.LogSourceID},
	{"dvchost", fields.LogSourceName},
	{"cs3", fields.VsysName},

	// Device and config
	{"PanOSDeviceSN", fields.Serial},
	{"PanOSConfigVersion", fields.ConfigVersion},
	{"PanOSDeviceName", fields.DeviceName},
	{"PanOSPanoramaSN", fields.PanoramaSerial},

	// Virtual system
	{"PanOSVirtualSystem", fields.Vsys},
	{"PanOSVirtualSystemID", fields.VsysID},
	{"PanOSVirtualSystemName", fields.VsysName},

	// Event
	{"PanOSEventID", fields.EventID},
	{"PanOSEventIDValue", fields.EventIDValue},
	{"PanOSLogTimeStamp", fields.TimeGenerated},
	{"PanOSTimeGeneratedHighResolution", fields.HighResTimestamp},
	{"PanOSLogSubtype", fields.LogSubtype},

	// Connection and auth
	{"PanOSStage", fields.Stage},
	{"PanOSAuthMethod", fields.AuthMethod},
	{"PanOSTunnelType", fields.TunnelType},
	{"PanOSSourceUserName", fields.SourceUser},
	{"PanOSSourceRegion", fields.SourceRegion},

	// Endpoint
	{"PanOSEndpointDeviceName", fields.MachineName},
	{"PanOSEndpointSN", fields.EndpointSerial},
	{"PanOSGlobalProtectClientVersion", fields.ClientVersion},
	{"PanOSEndpointOSType", fields.ClientOS},
	{"PanOSEndpointOSVersion", fields.ClientOSVersion},
	{"PanOSHostID", fields.HostID},

	// Addresses
	{"PanOSPublicIPv4", fields.PublicIP},
	{"PanOSPublicIPv6", fields.PublicIPv6},
	{"PanOSPrivateIPv4", fields.PrivateIP},
	{"PanOSPrivateIPv6", fields.PrivateIPv6},

	// Status and errors
	{ExtEventStatus, fields.Status},
	{ExtQuarantineReason, fields.Reason},
	{ExtConnectionError, fields.ConnectionError},
	{ExtConnectionErrID, fields.ErrorCode},
	{"PanOSDescription", fields.Opaque},

	// Gateway
	{"PanOSGateway", fields.Gateway},
	{"PanOSGlobalProtectGatewayLocation", fields.Location},
	{"PanOSGatewaySelectionType", fields.SelectionType},
	{"PanOSGatewayPriority", fields.Priority},
	{"PanOSAttemptedGateways", fields.AttemptedGateways},
	{"PanOSPortal", fields.Portal},

	// Connection metrics
	{"PanOSLoginDuration", fields.LoginDuration},
	{"PanOSConnectionMethod", fields.ConnectMethod},
	{"PanOSSSLResponseTime", fields.ResponseTime},

	// Log metadata
	{"PanOSCountOfRepeats", fields.RepeatCount},
	{"PanOSSequenceNo", fields.SequenceNo},
	{"PanOSActionFlags", fields.ActionFlags},
	{"PanOSDGHierarchyLevel1", fields.DGHierarchyLevel1},
	{"PanOSDGHierarchyLevel2", fields.DGHierarchyLevel2},
	{"PanOSDGHierarchyLevel3", fields.DGHierarchyLevel3},
	{"PanOSDGHierarchyLevel4", fields.DGHierarchyLevel4},
	{"LogSourceGroupID", fields.LogSourceGroupID},
	{"PanOSLogSourceTimeZoneOffset", fields.LogSourceTZOffset},

	// Platform and tenant
	{"PlatformType", fields.PlatformType},
	{"PanOSTenantID", fields.CustomerID},
	{"ProjectName", fields.ProjectName},
	{"PanOSIsPrismaNetworks", fields.IsPrismaBranch},
	{"PanOSIsPrismaUsers", fields.IsPrismaMobile},
	{"PanOSIsDuplicateLog", fields.IsDuplicateLog},
	{"PanOSLogExported", fields.IsExported},
	{"PanOSLogForwarded", fields.IsForwarded},
}
