package fields

// Canonical keys consulted by the severity cascade.
const (
	Status    Key = "status"
	Subtype   Key = "subtype"
	Reason    Key = "reason"
	ErrorCode Key = "error_code"
)

// Canonical keys for the CEF header.
const (
	SenderVersion Key = "sender_sw_version"
	LogType       Key = "type"
)

// Canonical keys for PAN-OS GlobalProtect extension data.
const (
	ReceiveTime       Key = "receive_time"
	TimeGenerated     Key = "time_generated"
	HighResTimestamp  Key = "high_res_timestamp"
	PublicIP          Key = "public_ip"
	PublicIPv6        Key = "public_ipv6"
	PrivateIP         Key = "private_ip"
	PrivateIPv6       Key = "private_ipv6"
	MachineName       Key = "machinename"
	SourceUser        Key = "srcuser"
	SourceUserDomain  Key = "source_user_domain"
	SourceUserUUID    Key = "source_user_uuid"
	DestUser          Key = "dest_user"
	DestUserDomain    Key = "dest_user_domain"
	DestUserUUID      Key = "dest_user_uuid"
	LogSource         Key = "log_source"
	LogSourceID       Key = "log_source_id"
	LogSourceName     Key = "log_source_name"
	LogSourceGroupID  Key = "log_source_group_id"
	LogSourceTZOffset Key = "log_source_tz_offset"
	Serial            Key = "serial"
	ConfigVersion     Key = "config_version"
	DeviceName        Key = "device_name"
	PanoramaSerial    Key = "panorama_serial"
	Vsys              Key = "vsys"
	VsysID            Key = "vsys_id"
	VsysName          Key = "vsys_name"
	EventID           Key = "eventid"
	EventIDValue      Key = "event_id_value"
	LogSubtype        Key = "log_subtype"
	Stage             Key = "stage"
	AuthMethod        Key = "auth_method"
	TunnelType        Key = "tunnel_type"
	SourceRegion      Key = "srcregion"
	EndpointSerial    Key = "endpoint_serial_number"
	ClientVersion     Key = "client_ver"
	ClientOS          Key = "client_os"
	ClientOSVersion   Key = "client_os_ver"
	HostID            Key = "hostid"
	ConnectionError   Key = "error"
	Opaque            Key = "opaque"
	Gateway           Key = "gateway"
	Location          Key = "location"
	SelectionType     Key = "selection_type"
	Priority          Key = "priority"
	AttemptedGateways Key = "attempted_gateways"
	Portal            Key = "portal"
	LoginDuration     Key = "login_duration"
	ConnectMethod     Key = "connect_method"
	ResponseTime      Key = "response_time"
	RepeatCount       Key = "repeatcnt"
	SequenceNo        Key = "seqno"
	ActionFlags       Key = "actionflags"
	DGHierarchyLevel1 Key = "dg_hier_level_1"
	DGHierarchyLevel2 Key = "dg_hier_level_2"
	DGHierarchyLevel3 Key = "dg_hier_level_3"
	DGHierarchyLevel4 Key = "dg_hier_level_4"
	PlatformType      Key = "platform_type"
	CustomerID        Key = "customer_id"
	ProjectName       Key = "project_name"
	IsPrismaBranch    Key = "is_prisma_branch"
	IsPrismaMobile    Key = "is_prisma_mobile"
	IsDuplicateLog    Key = "is_dup_log"
	IsExported        Key = "is_exported"
	IsForwarded       Key = "is_forwarded"
)

// panos returns the alias for a Panorama field: the bare name, the
// "$"-prefixed syslog template variable, then any legacy spellings.
func panos(k Key, extra ...string) Alias {
	sources := append([]string{string(k), "$" + string(k)}, extra...)
	return Alias{Key: k, Sources: sources}
}

// IngestAliases resolves Panorama GlobalProtect syslog fields.
var IngestAliases = AliasTable{
	panos(Status),
	panos(Subtype),
	panos(Reason, "quarantine_reason"),
	panos(ErrorCode, "error-code", "err_code", "connection_error_id"),

	panos(SenderVersion),
	panos(LogType),

	panos(ReceiveTime, "log_time"),
	panos(TimeGenerated),
	panos(HighResTimestamp),
	panos(PublicIP),
	panos(PublicIPv6),
	panos(PrivateIP),
	panos(PrivateIPv6),
	panos(MachineName, "endpoint_device_name"),
	panos(SourceUser, "source_user"),
	panos(SourceUserDomain),
	panos(SourceUserUUID),
	panos(DestUser),
	panos(DestUserDomain),
	panos(DestUserUUID),
	panos(LogSource),
	panos(LogSourceID),
	panos(LogSourceName),
	panos(LogSourceGroupID),
	panos(LogSourceTZOffset),
	panos(Serial),
	panos(ConfigVersion),
	panos(DeviceName),
	panos(PanoramaSerial),
	panos(Vsys),
	panos(VsysID),
	panos(VsysName),
	panos(EventID),
	panos(EventIDValue),
	panos(LogSubtype, "subtype"),
	panos(Stage),
	panos(AuthMethod),
	panos(TunnelType, "tunnel"),
	panos(SourceRegion, "source_region"),
	panos(EndpointSerial, "endpoint_sn"),
	panos(ClientVersion, "endpoint_gp_version"),
	panos(ClientOS, "endpoint_os_type"),
	panos(ClientOSVersion, "endpoint_os_version"),
	panos(HostID, "host_id"),
	panos(ConnectionError, "connection_error"),
	panos(Opaque),
	panos(Gateway),
	panos(Location, "gpg_location"),
	panos(SelectionType, "gateway_selection_type"),
	panos(Priority, "gateway_priority"),
	panos(AttemptedGateways),
	panos(Portal),
	panos(LoginDuration),
	panos(ConnectMethod, "connection_method"),
	panos(ResponseTime, "ssl_response_time"),
	panos(RepeatCount, "count_of_repeats"),
	panos(SequenceNo, "sequence_no"),
	panos(ActionFlags),
	panos(DGHierarchyLevel1),
	panos(DGHierarchyLevel2),
	panos(DGHierarchyLevel3),
	panos(DGHierarchyLevel4),
	panos(PlatformType),
	panos(CustomerID, "tenant_id"),
	panos(ProjectName),
	panos(IsPrismaBranch),
	panos(IsPrismaMobile),
	panos(IsDuplicateLog),
	panos(IsExported),
	panos(IsForwarded),
}

// CEFAliases resolves the severity inputs from a decoded CEF message.
// Header values are addressed by their CEF dictionary names.
var CEFAliases = AliasTable{
	{Key: Status, Sources: []string{"PanOSEventStatus", "outcome"}},
	{Key: Subtype, Sources: []string{"name"}},
	{Key: Reason, Sources: []string{"PanOSQuarantineReason", "reason"}},
	{Key: ErrorCode, Sources: []string{"PanOSConnectionErrorID"}},
}
